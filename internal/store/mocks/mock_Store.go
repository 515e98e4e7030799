// Package mocks provides test doubles for the store.
package mocks

import (
	"context"
	"time"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/docextract/internal/model"
	store "github.com/sells-group/docextract/internal/store"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateDocument provides a mock function with given fields: ctx, doc
func (_m *MockStore) CreateDocument(ctx context.Context, doc model.Document) (*model.Document, error) {
	ret := _m.Called(ctx, doc)

	if len(ret) == 0 {
		panic("no return value specified for CreateDocument")
	}

	var r0 *model.Document
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.Document) (*model.Document, error)); ok {
		return rf(ctx, doc)
	}
	if rf, ok := ret.Get(0).(func(context.Context, model.Document) *model.Document); ok {
		r0 = rf(ctx, doc)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Document)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, model.Document) error); ok {
		r1 = rf(ctx, doc)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetDocument provides a mock function with given fields: ctx, id
func (_m *MockStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetDocument")
	}

	var r0 *model.Document
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Document, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Document); ok {
		r0 = rf(ctx, id)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.Document)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CreateJob provides a mock function with given fields: ctx, documentID
func (_m *MockStore) CreateJob(ctx context.Context, documentID string) (*model.ExtractionJob, error) {
	ret := _m.Called(ctx, documentID)

	if len(ret) == 0 {
		panic("no return value specified for CreateJob")
	}

	var r0 *model.ExtractionJob
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.ExtractionJob, error)); ok {
		return rf(ctx, documentID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.ExtractionJob); ok {
		r0 = rf(ctx, documentID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.ExtractionJob)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, documentID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetJob provides a mock function with given fields: ctx, id
func (_m *MockStore) GetJob(ctx context.Context, id string) (*model.ExtractionJob, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetJob")
	}

	var r0 *model.ExtractionJob
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.ExtractionJob, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.ExtractionJob); ok {
		r0 = rf(ctx, id)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.ExtractionJob)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListJobs provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListJobs(ctx context.Context, filter store.JobFilter) ([]model.ExtractionJob, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListJobs")
	}

	var r0 []model.ExtractionJob
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, store.JobFilter) ([]model.ExtractionJob, error)); ok {
		return rf(ctx, filter)
	}
	if rf, ok := ret.Get(0).(func(context.Context, store.JobFilter) []model.ExtractionJob); ok {
		r0 = rf(ctx, filter)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.ExtractionJob)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, store.JobFilter) error); ok {
		r1 = rf(ctx, filter)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateJobStatus provides a mock function with given fields: ctx, id, status, message, details
func (_m *MockStore) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, message string, details *model.ErrorDetails) error {
	ret := _m.Called(ctx, id, status, message, details)

	if len(ret) == 0 {
		panic("no return value specified for UpdateJobStatus")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, model.JobStatus, string, *model.ErrorDetails) error); ok {
		r0 = rf(ctx, id, status, message, details)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// CompleteJob provides a mock function with given fields: ctx, id, resultID, message
func (_m *MockStore) CompleteJob(ctx context.Context, id string, resultID string, message string) error {
	ret := _m.Called(ctx, id, resultID, message)

	if len(ret) == 0 {
		panic("no return value specified for CompleteJob")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string, string) error); ok {
		r0 = rf(ctx, id, resultID, message)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// CreateExtractionResult provides a mock function with given fields: ctx, result
func (_m *MockStore) CreateExtractionResult(ctx context.Context, result *model.ExtractionResult) (string, error) {
	ret := _m.Called(ctx, result)

	if len(ret) == 0 {
		panic("no return value specified for CreateExtractionResult")
	}

	var r0 string
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.ExtractionResult) (string, error)); ok {
		return rf(ctx, result)
	}
	if rf, ok := ret.Get(0).(func(context.Context, *model.ExtractionResult) string); ok {
		r0 = rf(ctx, result)
	} else {
		r0 = ret.Get(0).(string)
	}

	if rf, ok := ret.Get(1).(func(context.Context, *model.ExtractionResult) error); ok {
		r1 = rf(ctx, result)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// InsertExtractedFields provides a mock function with given fields: ctx, resultID, fields
func (_m *MockStore) InsertExtractedFields(ctx context.Context, resultID string, fields []model.ExtractedField) error {
	ret := _m.Called(ctx, resultID, fields)

	if len(ret) == 0 {
		panic("no return value specified for InsertExtractedFields")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, []model.ExtractedField) error); ok {
		r0 = rf(ctx, resultID, fields)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// DeleteExtractionResult provides a mock function with given fields: ctx, id
func (_m *MockStore) DeleteExtractionResult(ctx context.Context, id string) error {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for DeleteExtractionResult")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		r0 = rf(ctx, id)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetExtractionResult provides a mock function with given fields: ctx, id
func (_m *MockStore) GetExtractionResult(ctx context.Context, id string) (*model.ExtractionResult, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetExtractionResult")
	}

	var r0 *model.ExtractionResult
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.ExtractionResult, error)); ok {
		return rf(ctx, id)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.ExtractionResult); ok {
		r0 = rf(ctx, id)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*model.ExtractionResult)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ListExtractedFields provides a mock function with given fields: ctx, resultID
func (_m *MockStore) ListExtractedFields(ctx context.Context, resultID string) ([]model.ExtractedField, error) {
	ret := _m.Called(ctx, resultID)

	if len(ret) == 0 {
		panic("no return value specified for ListExtractedFields")
	}

	var r0 []model.ExtractedField
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.ExtractedField, error)); ok {
		return rf(ctx, resultID)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []model.ExtractedField); ok {
		r0 = rf(ctx, resultID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]model.ExtractedField)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, resultID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// CountResultsByConfidence provides a mock function with given fields: ctx, since
func (_m *MockStore) CountResultsByConfidence(ctx context.Context, since time.Time) (map[model.ConfidenceTier]int, error) {
	ret := _m.Called(ctx, since)

	if len(ret) == 0 {
		panic("no return value specified for CountResultsByConfidence")
	}

	var r0 map[model.ConfidenceTier]int
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) (map[model.ConfidenceTier]int, error)); ok {
		return rf(ctx, since)
	}
	if rf, ok := ret.Get(0).(func(context.Context, time.Time) map[model.ConfidenceTier]int); ok {
		r0 = rf(ctx, since)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(map[model.ConfidenceTier]int)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, time.Time) error); ok {
		r1 = rf(ctx, since)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// RecordProvenance provides a mock function with given fields: ctx, p
func (_m *MockStore) RecordProvenance(ctx context.Context, p model.PromptProvenance) error {
	ret := _m.Called(ctx, p)

	if len(ret) == 0 {
		panic("no return value specified for RecordProvenance")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, model.PromptProvenance) error); ok {
		r0 = rf(ctx, p)
	} else {
		r0 = ret.Error(0)
	}

	return r0
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

// NewMockStore creates a new instance of MockStore.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

var _ store.Store = (*MockStore)(nil)
