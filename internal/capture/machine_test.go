package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testTimeouts() Timeouts {
	return Timeouts{
		Navigation:   time.Second,
		PostLogin:    time.Second,
		LoginField:   time.Second,
		LoginButton:  time.Second,
		Lookup:       time.Second,
		ResultsFrame: time.Second,
		HasData:      time.Second,
		Settle:       30 * time.Millisecond,
		PopupContent: time.Second,
	}
}

// newMachineFixture wires a page whose top document hosts the date form and
// whose results frame contains the print control.
func newMachineFixture(t *testing.T) (*Machine, *fakePage, *fakeFrame, *DialogArbiter) {
	t.Helper()

	page := newFakePage()
	page.has[selStartDateView] = true

	frame := newFakeFrame(resultsFrameName)
	page.frames = []Frame{frame}

	arbiter := NewDialogArbiter("조회된 데이터가 없습니다", zap.NewNop())
	arbiter.Attach(page)

	m := NewMachine(page, arbiter, NewPopupResolver(page), testTimeouts(), zap.NewNop())
	return m, page, frame, arbiter
}

func TestMachineRun(t *testing.T) {
	const artifactPath = "/tmp/receipts/하이패스(2026-08-30).png"
	date := NewDate(2026, 8, 30)

	t.Run("captures the receipt when the popup arrives", func(t *testing.T) {
		m, _, frame, _ := newMachineFixture(t)

		popup := &fakePopup{}
		frame.onEval = func(script string, args []interface{}) {
			m.page.(*fakePage).spawnPopup(popup)
		}

		res := m.Run(context.Background(), date, artifactPath)

		require.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, "하이패스(2026-08-30).png", res.Filename)
		assert.Equal(t, artifactPath, popup.screenshotPath)
		assert.True(t, popup.closed)
	})

	t.Run("sets both date fields and the hidden query values", func(t *testing.T) {
		m, page, frame, _ := newMachineFixture(t)
		frame.onEval = func(script string, args []interface{}) {
			page.spawnPopup(&fakePopup{})
		}

		res := m.Run(context.Background(), date, artifactPath)

		require.Equal(t, StatusSuccess, res.Status)
		assert.Equal(t, "2026-08-30", page.filled[selStartDateView])
		assert.Equal(t, "2026-08-30", page.filled[selEndDateView])
		assert.Contains(t, page.pressed, selStartDateView+":Enter")
		assert.Contains(t, page.pressed, selEndDateView+":Enter")
		// The hidden-field script runs on the form context.
		require.Len(t, page.evals, 1)
		assert.Contains(t, page.clicked, selLookupButton)
	})

	t.Run("classifies the no-data dialog as empty", func(t *testing.T) {
		m, page, frame, _ := newMachineFixture(t)
		frame.onEval = func(script string, args []interface{}) {
			page.handler(&fakeDialog{msg: "조회된 데이터가 없습니다."})
		}

		res := m.Run(context.Background(), date, artifactPath)

		assert.Equal(t, StatusEmpty, res.Status)
		assert.Equal(t, msgNoData, res.Message)
	})

	t.Run("classifies a missing print control as empty", func(t *testing.T) {
		m, _, frame, _ := newMachineFixture(t)
		frame.waitErr[selPrintAll] = errBoom

		res := m.Run(context.Background(), date, artifactPath)

		assert.Equal(t, StatusEmpty, res.Status)
	})

	t.Run("errors when the results frame never appears", func(t *testing.T) {
		m, page, _, _ := newMachineFixture(t)
		page.frames = nil

		res := m.Run(context.Background(), date, artifactPath)

		require.Equal(t, StatusError, res.Status)
		assert.Contains(t, res.Message, resultsFrameName)
	})

	t.Run("falls back to window enumeration after the settle timeout", func(t *testing.T) {
		m, page, frame, _ := newMachineFixture(t)

		popup := &fakePopup{}
		frame.onEval = func(script string, args []interface{}) {
			// The window exists but its creation event was never delivered.
			page.mu.Lock()
			page.windows = append(page.windows, popup)
			page.mu.Unlock()
		}

		res := m.Run(context.Background(), date, artifactPath)

		require.Equal(t, StatusSuccess, res.Status)
		assert.True(t, popup.closed)
	})

	t.Run("treats a silent settle window as empty", func(t *testing.T) {
		m, _, _, _ := newMachineFixture(t)

		res := m.Run(context.Background(), date, artifactPath)

		assert.Equal(t, StatusEmpty, res.Status)
	})

	t.Run("treats a popup without receipt content as empty", func(t *testing.T) {
		m, page, frame, _ := newMachineFixture(t)

		popup := &fakePopup{waitErr: errBoom}
		frame.onEval = func(script string, args []interface{}) {
			page.spawnPopup(popup)
		}

		res := m.Run(context.Background(), date, artifactPath)

		assert.Equal(t, StatusEmpty, res.Status)
		assert.True(t, popup.closed)
	})

	t.Run("reports a screenshot failure as an error and still closes the popup", func(t *testing.T) {
		m, page, frame, _ := newMachineFixture(t)

		popup := &fakePopup{screenshotErr: errBoom}
		frame.onEval = func(script string, args []interface{}) {
			page.spawnPopup(popup)
		}

		res := m.Run(context.Background(), date, artifactPath)

		require.Equal(t, StatusError, res.Status)
		assert.Contains(t, res.Message, "screenshot")
		assert.True(t, popup.closed)
	})

	t.Run("a stale no-data latch does not leak into the print race", func(t *testing.T) {
		m, page, frame, arbiter := newMachineFixture(t)

		// A dialog fired during an earlier phase of the same date.
		page.handler(&fakeDialog{msg: "조회된 데이터가 없습니다."})
		require.True(t, arbiter.NoData())

		popup := &fakePopup{}
		frame.onEval = func(script string, args []interface{}) {
			page.spawnPopup(popup)
		}

		res := m.Run(context.Background(), date, artifactPath)

		require.Equal(t, StatusSuccess, res.Status)
	})

	t.Run("cancellation surfaces as an error result", func(t *testing.T) {
		m, _, _, _ := newMachineFixture(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := m.Run(ctx, date, artifactPath)

		require.Equal(t, StatusError, res.Status)
		assert.Contains(t, res.Message, context.Canceled.Error())
	})
}
