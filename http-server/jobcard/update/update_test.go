package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/scipiia/effvalid/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeJobCards mimics the revision seam: the field update and the validation
// run live in one transaction, so a failed run leaves the card untouched.
type fakeJobCards struct {
	card      *storage.JobCard
	committed bool
}

func (f *fakeJobCards) GetJobCard(_ context.Context, id int64) (*storage.JobCard, error) {
	if f.card == nil || f.card.ID != id {
		return nil, storage.ErrNotFound
	}
	copied := *f.card
	return &copied, nil
}

func (f *fakeJobCards) ReviseJobCard(ctx context.Context, card *storage.JobCard, validate storage.ValidateFunc) ([]*storage.ValidationFlag, error) {
	flags, err := validate(ctx, nil, card)
	if err != nil {
		return nil, err
	}
	f.card = card
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

func existingCard() *storage.JobCard {
	return &storage.JobCard{
		ID:          5,
		EmployeeID:  1,
		MachineID:   10,
		WorkOrderID: 100,
		Qty:         decimal.RequireFromString("12.5"),
		ActualHours: decimal.RequireFromString("8"),
		Status:      storage.StatusComplete,
		Shift:       1,
	}
}

func doRequest(handler http.HandlerFunc, id, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Put("/api/jobcards/{id}", handler)

	req := httptest.NewRequest(http.MethodPut, "/api/jobcards/"+id, strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestUpdateJobCardOperation_Success(t *testing.T) {
	cards := &fakeJobCards{card: existingCard()}
	mockValidator := new(MockValidator)

	mockValidator.On("RunValidationsWith", mock.Anything, mock.Anything, mock.MatchedBy(func(card *storage.JobCard) bool {
		return card.ID == 5 && card.Qty.Equal(decimal.RequireFromString("70"))
	})).Return([]*storage.ValidationFlag{}, nil)

	handler := UpdateJobCardOperation(slog.Default(), cards, mockValidator)

	rr := doRequest(handler, "5", `{"qty": "70"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, cards.committed)

	var resp Response
	err := render.DecodeJSON(strings.NewReader(rr.Body.String()), &resp)
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.ID)

	mockValidator.AssertExpectations(t)
}

func TestUpdateJobCardOperation_NotFound(t *testing.T) {
	handler := UpdateJobCardOperation(slog.Default(), &fakeJobCards{}, new(MockValidator))

	rr := doRequest(handler, "99", `{"qty": "70"}`)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateJobCardOperation_ValidationFailureRollsBackUpdate(t *testing.T) {
	cards := &fakeJobCards{card: existingCard()}
	mockValidator := new(MockValidator)

	mockValidator.On("RunValidationsWith", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("persist failed"))

	handler := UpdateJobCardOperation(slog.Default(), cards, mockValidator)

	rr := doRequest(handler, "5", `{"qty": "70"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	// the edit shares the run's transaction, the stored card keeps its old qty
	assert.False(t, cards.committed)
	assert.True(t, cards.card.Qty.Equal(decimal.RequireFromString("12.5")))
}

func TestUpdateJobCardOperation_BadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broken json", `{`},
		{"negative qty", `{"qty": "-1"}`},
		{"bad status", `{"status": "DONE"}`},
		{"bad shift", `{"shift": 4}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := &fakeJobCards{card: existingCard()}
			handler := UpdateJobCardOperation(slog.Default(), cards, new(MockValidator))

			rr := doRequest(handler, "5", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.False(t, cards.committed)
		})
	}
}
