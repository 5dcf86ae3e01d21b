package save

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/render"
	"github.com/scipiia/effvalid/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func mustDec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeJobCards mimics the submission seam: the card write and the validation
// run live in one transaction, so a failed run leaves nothing committed.
type fakeJobCards struct {
	committed bool
}

func (f *fakeJobCards) SubmitJobCard(ctx context.Context, card *storage.JobCard, validate storage.ValidateFunc) ([]*storage.ValidationFlag, error) {
	card.ID = 7
	flags, err := validate(ctx, nil, card)
	if err != nil {
		return nil, err
	}
	f.committed = true
	return flags, nil
}

type MockValidator struct {
	mock.Mock
}

func (m *MockValidator) RunValidationsWith(ctx context.Context, store storage.ValidationStore, card *storage.JobCard) ([]*storage.ValidationFlag, error) {
	args := m.Called(ctx, store, card)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	flags, ok := args.Get(0).([]*storage.ValidationFlag)
	if !ok {
		return nil, fmt.Errorf("expected []*storage.ValidationFlag, got %T", args.Get(0))
	}

	return flags, args.Error(1)
}

const validBody = `{
	"employee_id": 1,
	"machine_id": 10,
	"work_order_id": 100,
	"activity_desc": "manual deburring",
	"qty": "12.5",
	"actual_hours": "8",
	"status": "C",
	"entry_date": "2024-11-05",
	"shift": 1,
	"source": "TECHNICIAN",
	"efficiency_module": "QUANTITY_BASED"
}`

func TestSaveJobCardOperation_Success(t *testing.T) {
	cards := &fakeJobCards{}
	mockValidator := new(MockValidator)

	mockValidator.On("RunValidationsWith", mock.Anything, mock.Anything, mock.MatchedBy(func(card *storage.JobCard) bool {
		return card.ID == 7
	})).Return([]*storage.ValidationFlag{
		{ID: 1, JobCardID: 7, FlagType: storage.FlagAWC, Details: "activity without code"},
	}, nil)

	handler := SaveJobCardOperation(slog.Default(), cards, mockValidator)

	req := httptest.NewRequest(http.MethodPost, "/api/jobcards", strings.NewReader(validBody))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.True(t, cards.committed)

	var resp Response
	err := render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp)
	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.ID)
	require.Len(t, resp.Flags, 1)
	assert.Equal(t, storage.FlagAWC, resp.Flags[0].FlagType)

	mockValidator.AssertExpectations(t)
}

func TestSaveJobCardOperation_ValidationFailureRollsBackCard(t *testing.T) {
	cards := &fakeJobCards{}
	mockValidator := new(MockValidator)

	mockValidator.On("RunValidationsWith", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("persist failed"))

	handler := SaveJobCardOperation(slog.Default(), cards, mockValidator)

	req := httptest.NewRequest(http.MethodPost, "/api/jobcards", strings.NewReader(validBody))
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	// the card write shares the run's transaction, so the client can retry
	// without duplicating the card
	assert.False(t, cards.committed)
}

func TestSaveJobCardOperation_BadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broken json", `{`},
		{"negative qty", strings.Replace(validBody, `"qty": "12.5"`, `"qty": "-1"`, 1)},
		{"negative hours", strings.Replace(validBody, `"actual_hours": "8"`, `"actual_hours": "-8"`, 1)},
		{"bad shift", strings.Replace(validBody, `"shift": 1`, `"shift": 4`, 1)},
		{"bad status", strings.Replace(validBody, `"status": "C"`, `"status": "DONE"`, 1)},
		{"bad entry date", strings.Replace(validBody, `"entry_date": "2024-11-05"`, `"entry_date": "05.11.2024"`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := &fakeJobCards{}
			handler := SaveJobCardOperation(slog.Default(), cards, new(MockValidator))

			req := httptest.NewRequest(http.MethodPost, "/api/jobcards", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.False(t, cards.committed)
		})
	}
}

func TestCardFromRequest(t *testing.T) {
	card, err := CardFromRequest(Request{
		EmployeeID:       1,
		MachineID:        10,
		WorkOrderID:      100,
		ActivityDesc:     "manual deburring",
		Qty:              mustDec("12.5"),
		ActualHours:      mustDec("8"),
		Status:           storage.StatusComplete,
		EntryDate:        "2024-11-05",
		Shift:            2,
		Source:           storage.SourceTechnician,
		EfficiencyModule: storage.EfficiencyQuantityBased,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(100), card.WorkOrderID)
	assert.Equal(t, "2024-11-05", card.EntryDate.Format("2006-01-02"))
	assert.Nil(t, card.ActivityCodeID)
}
