package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/train-station/internal/model"
	"github.com/iliyamo/train-station/internal/repository"
	"github.com/iliyamo/train-station/internal/reservation"
)

type fakeOrderService struct {
	placed   []reservation.Request
	order    *model.Order
	err      error
	canceled []uint64
}

func (f *fakeOrderService) PlaceOrder(_ context.Context, req reservation.Request) (*model.Order, error) {
	f.placed = append(f.placed, req)
	return f.order, f.err
}

func (f *fakeOrderService) CancelOrder(_ context.Context, _, orderID uint64) error {
	f.canceled = append(f.canceled, orderID)
	return f.err
}

type fakeOrderReader struct {
	orders []model.Order
	total  int
	limit  int
	offset int
	err    error
}

func (f *fakeOrderReader) GetForOwner(_ context.Context, ownerID, orderID uint64) (*model.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.orders {
		if f.orders[i].ID == orderID && f.orders[i].OwnerID == ownerID {
			return &f.orders[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrderReader) ListByOwner(_ context.Context, _ uint64, limit, offset int) ([]model.Order, int, error) {
	f.limit, f.offset = limit, offset
	return f.orders, f.total, f.err
}

type fakeTrainStore struct {
	trains  []model.Train
	created *model.Train
}

func (f *fakeTrainStore) Create(_ context.Context, t *model.Train) error {
	t.ID = 9
	f.created = t
	return nil
}

func (f *fakeTrainStore) GetByID(_ context.Context, id uint64) (*model.Train, error) {
	for i := range f.trains {
		if f.trains[i].ID == id {
			return &f.trains[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeTrainStore) List(context.Context) ([]model.Train, error) { return f.trains, nil }

type fakeJourneyStore struct {
	detail    *repository.JourneyDetail
	items     []repository.JourneySummary
	trainSeen uint64
	created   *model.Journey
	createErr error
	deleteErr error
}

func (f *fakeJourneyStore) Create(_ context.Context, j *model.Journey) error {
	if f.createErr != nil {
		return f.createErr
	}
	j.ID = 11
	f.created = j
	return nil
}

func (f *fakeJourneyStore) GetDetail(_ context.Context, id uint64) (*repository.JourneyDetail, error) {
	if f.detail == nil || f.detail.ID != id {
		return nil, repository.ErrNotFound
	}
	return f.detail, nil
}

func (f *fakeJourneyStore) List(_ context.Context, trainID uint64) ([]repository.JourneySummary, error) {
	f.trainSeen = trainID
	return f.items, nil
}

func (f *fakeJourneyStore) Delete(context.Context, uint64) error { return f.deleteErr }

type fakeSeatMap struct {
	avail     *reservation.Availability
	err       error
	forgotten []uint64
}

func (f *fakeSeatMap) Availability(context.Context, uint64) (*reservation.Availability, error) {
	return f.avail, f.err
}

func (f *fakeSeatMap) ForgetJourney(_ context.Context, id uint64) {
	f.forgotten = append(f.forgotten, id)
}

// newContext builds an echo context for a request.  ownerID 0 leaves the
// request unauthenticated.  Path parameters are given as name/value pairs.
func newContext(method, target, body string, ownerID uint64, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewRequestValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if ownerID != 0 {
		c.Set("user_id", ownerID)
	}
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

var testTime = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

