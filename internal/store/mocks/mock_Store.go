// Package mocks provides test doubles for the store.
package mocks

import (
	"context"
	"time"

	model "github.com/sells-group/domain-runner/internal/model"
	store "github.com/sells-group/domain-runner/internal/store"
	mock "github.com/stretchr/testify/mock"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// UpsertSubjects provides a mock function with given fields: ctx, subjects
func (_m *MockStore) UpsertSubjects(ctx context.Context, subjects []model.Subject) (int64, error) {
	ret := _m.Called(ctx, subjects)

	if len(ret) == 0 {
		panic("no return value specified for UpsertSubjects")
	}

	var r0 int64
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, []model.Subject) (int64, error)); ok {
		return rf(ctx, subjects)
	}
	if rf, ok := ret.Get(0).(func(context.Context, []model.Subject) int64); ok {
		r0 = rf(ctx, subjects)
	} else {
		r0 = ret.Get(0).(int64)
	}

	if rf, ok := ret.Get(1).(func(context.Context, []model.Subject) error); ok {
		r1 = rf(ctx, subjects)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListActiveSubjects provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListActiveSubjects(ctx context.Context, filter store.SubjectFilter) ([]model.Subject, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListActiveSubjects")
	}

	var r0 []model.Subject
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, store.SubjectFilter) ([]model.Subject, error)); ok {
		return rf(ctx, filter)
	}
	if rf, ok := ret.Get(0).(func(context.Context, store.SubjectFilter) []model.Subject); ok {
		r0 = rf(ctx, filter)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.Subject)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, store.SubjectFilter) error); ok {
		r1 = rf(ctx, filter)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetSubject provides a mock function with given fields: ctx, domain
func (_m *MockStore) GetSubject(ctx context.Context, domain string) (*model.Subject, error) {
	ret := _m.Called(ctx, domain)

	if len(ret) == 0 {
		panic("no return value specified for GetSubject")
	}

	var r0 *model.Subject
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Subject, error)); ok {
		return rf(ctx, domain)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Subject); ok {
		r0 = rf(ctx, domain)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Subject)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, domain)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DeactivateSubject provides a mock function with given fields: ctx, domain
func (_m *MockStore) DeactivateSubject(ctx context.Context, domain string) error {
	ret := _m.Called(ctx, domain)

	if len(ret) == 0 {
		panic("no return value specified for DeactivateSubject")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		r0 = rf(ctx, domain)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// SaveResponse provides a mock function with given fields: ctx, rec
func (_m *MockStore) SaveResponse(ctx context.Context, rec *model.ResponseRecord) error {
	ret := _m.Called(ctx, rec)

	if len(ret) == 0 {
		panic("no return value specified for SaveResponse")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.ResponseRecord) error); ok {
		r0 = rf(ctx, rec)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetBaseline provides a mock function with given fields: ctx, subjectID, modelKey, promptType, excludePromptID
func (_m *MockStore) GetBaseline(ctx context.Context, subjectID string, modelKey string, promptType string, excludePromptID string) (*model.ResponseRecord, error) {
	ret := _m.Called(ctx, subjectID, modelKey, promptType, excludePromptID)

	if len(ret) == 0 {
		panic("no return value specified for GetBaseline")
	}

	var r0 *model.ResponseRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, string) (*model.ResponseRecord, error)); ok {
		return rf(ctx, subjectID, modelKey, promptType, excludePromptID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string, string) *model.ResponseRecord); ok {
		r0 = rf(ctx, subjectID, modelKey, promptType, excludePromptID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.ResponseRecord)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, string, string) error); ok {
		r1 = rf(ctx, subjectID, modelKey, promptType, excludePromptID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListEmbeddings provides a mock function with given fields: ctx, subjectID, modelKey, since
func (_m *MockStore) ListEmbeddings(ctx context.Context, subjectID string, modelKey string, since time.Time) ([][]float64, error) {
	ret := _m.Called(ctx, subjectID, modelKey, since)

	if len(ret) == 0 {
		panic("no return value specified for ListEmbeddings")
	}

	var r0 [][]float64
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, time.Time) ([][]float64, error)); ok {
		return rf(ctx, subjectID, modelKey, since)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string, time.Time) [][]float64); ok {
		r0 = rf(ctx, subjectID, modelKey, since)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([][]float64)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string, time.Time) error); ok {
		r1 = rf(ctx, subjectID, modelKey, since)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// InsertDrift provides a mock function with given fields: ctx, rec
func (_m *MockStore) InsertDrift(ctx context.Context, rec *model.DriftRecord) error {
	ret := _m.Called(ctx, rec)

	if len(ret) == 0 {
		panic("no return value specified for InsertDrift")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.DriftRecord) error); ok {
		r0 = rf(ctx, rec)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// InsertDriftBatch provides a mock function with given fields: ctx, recs
func (_m *MockStore) InsertDriftBatch(ctx context.Context, recs []model.DriftRecord) error {
	ret := _m.Called(ctx, recs)

	if len(ret) == 0 {
		panic("no return value specified for InsertDriftBatch")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, []model.DriftRecord) error); ok {
		r0 = rf(ctx, recs)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// LatestDrift provides a mock function with given fields: ctx, subject
func (_m *MockStore) LatestDrift(ctx context.Context, subject string) (*model.DriftRecord, error) {
	ret := _m.Called(ctx, subject)

	if len(ret) == 0 {
		panic("no return value specified for LatestDrift")
	}

	var r0 *model.DriftRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.DriftRecord, error)); ok {
		return rf(ctx, subject)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.DriftRecord); ok {
		r0 = rf(ctx, subject)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.DriftRecord)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, subject)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// LatestDriftByModel provides a mock function with given fields: ctx, subject, since
func (_m *MockStore) LatestDriftByModel(ctx context.Context, subject string, since time.Time) ([]model.DriftRecord, error) {
	ret := _m.Called(ctx, subject, since)

	if len(ret) == 0 {
		panic("no return value specified for LatestDriftByModel")
	}

	var r0 []model.DriftRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time) ([]model.DriftRecord, error)); ok {
		return rf(ctx, subject, since)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, time.Time) []model.DriftRecord); ok {
		r0 = rf(ctx, subject, since)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.DriftRecord)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, time.Time) error); ok {
		r1 = rf(ctx, subject, since)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DriftStats provides a mock function with given fields: ctx, subject
func (_m *MockStore) DriftStats(ctx context.Context, subject string) (*model.DriftStats, error) {
	ret := _m.Called(ctx, subject)

	if len(ret) == 0 {
		panic("no return value specified for DriftStats")
	}

	var r0 *model.DriftStats
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.DriftStats, error)); ok {
		return rf(ctx, subject)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.DriftStats); ok {
		r0 = rf(ctx, subject)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.DriftStats)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, subject)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// HighDriftSubjects provides a mock function with given fields: ctx, since, threshold, limit
func (_m *MockStore) HighDriftSubjects(ctx context.Context, since time.Time, threshold float64, limit int) ([]store.SubjectDrift, error) {
	ret := _m.Called(ctx, since, threshold, limit)

	if len(ret) == 0 {
		panic("no return value specified for HighDriftSubjects")
	}

	var r0 []store.SubjectDrift
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, time.Time, float64, int) ([]store.SubjectDrift, error)); ok {
		return rf(ctx, since, threshold, limit)
	}
	if rf, ok := ret.Get(0).(func(context.Context, time.Time, float64, int) []store.SubjectDrift); ok {
		r0 = rf(ctx, since, threshold, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]store.SubjectDrift)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, time.Time, float64, int) error); ok {
		r1 = rf(ctx, since, threshold, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// WindowDrift provides a mock function with given fields: ctx, since
func (_m *MockStore) WindowDrift(ctx context.Context, since time.Time) (*store.WindowDrift, error) {
	ret := _m.Called(ctx, since)

	if len(ret) == 0 {
		panic("no return value specified for WindowDrift")
	}

	var r0 *store.WindowDrift
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) (*store.WindowDrift, error)); ok {
		return rf(ctx, since)
	}
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) *store.WindowDrift); ok {
		r0 = rf(ctx, since)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*store.WindowDrift)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, time.Time) error); ok {
		r1 = rf(ctx, since)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SubjectAggregates provides a mock function with given fields: ctx, cohort
func (_m *MockStore) SubjectAggregates(ctx context.Context, cohort string) ([]model.SubjectAggregate, error) {
	ret := _m.Called(ctx, cohort)

	if len(ret) == 0 {
		panic("no return value specified for SubjectAggregates")
	}

	var r0 []model.SubjectAggregate
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.SubjectAggregate, error)); ok {
		return rf(ctx, cohort)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []model.SubjectAggregate); ok {
		r0 = rf(ctx, cohort)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.SubjectAggregate)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, cohort)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CreateBatch provides a mock function with given fields: ctx, batch
func (_m *MockStore) CreateBatch(ctx context.Context, batch *model.BatchRun) error {
	ret := _m.Called(ctx, batch)

	if len(ret) == 0 {
		panic("no return value specified for CreateBatch")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.BatchRun) error); ok {
		r0 = rf(ctx, batch)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// CompleteBatch provides a mock function with given fields: ctx, batch
func (_m *MockStore) CompleteBatch(ctx context.Context, batch *model.BatchRun) error {
	ret := _m.Called(ctx, batch)

	if len(ret) == 0 {
		panic("no return value specified for CompleteBatch")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.BatchRun) error); ok {
		r0 = rf(ctx, batch)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetBatch provides a mock function with given fields: ctx, batchID
func (_m *MockStore) GetBatch(ctx context.Context, batchID string) (*model.BatchRun, error) {
	ret := _m.Called(ctx, batchID)

	if len(ret) == 0 {
		panic("no return value specified for GetBatch")
	}

	var r0 *model.BatchRun
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.BatchRun, error)); ok {
		return rf(ctx, batchID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.BatchRun); ok {
		r0 = rf(ctx, batchID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.BatchRun)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, batchID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListBatches provides a mock function with given fields: ctx, limit
func (_m *MockStore) ListBatches(ctx context.Context, limit int) ([]model.BatchRun, error) {
	ret := _m.Called(ctx, limit)

	if len(ret) == 0 {
		panic("no return value specified for ListBatches")
	}

	var r0 []model.BatchRun
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]model.BatchRun, error)); ok {
		return rf(ctx, limit)
	}
	if rf, ok := ret.Get(0).(func(context.Context, int) []model.BatchRun); ok {
		r0 = rf(ctx, limit)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.BatchRun)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, int) error); ok {
		r1 = rf(ctx, limit)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Ping provides a mock function with given fields: ctx
func (_m *MockStore) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Ping")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStore creates a new instance of MockStore. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
