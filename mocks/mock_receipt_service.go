package mocks

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"receiptcsv/internal/domain"
	"receiptcsv/internal/service"
)

// MockReceiptService is a mock implementation of service.ReceiptService.
type MockReceiptService struct {
	mock.Mock
}

func (m *MockReceiptService) Status() service.Status {
	args := m.Called()
	return args.Get(0).(service.Status)
}

func (m *MockReceiptService) ConfigError() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockReceiptService) Table(ctx context.Context, sessionID string) (*service.Table, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Table), args.Error(1)
}

func (m *MockReceiptService) LoadTemplate(ctx context.Context, sessionID string, input service.TemplateUploadInput) (*domain.Template, error) {
	args := m.Called(ctx, sessionID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Template), args.Error(1)
}

func (m *MockReceiptService) UseDefaultTemplate(ctx context.Context, sessionID string) (*domain.Template, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Template), args.Error(1)
}

func (m *MockReceiptService) SetLayout(ctx context.Context, sessionID string, layout domain.RowLayout) error {
	args := m.Called(ctx, sessionID, layout)
	return args.Error(0)
}

func (m *MockReceiptService) Extract(ctx context.Context, sessionID string, input service.ReceiptUploadInput) (*service.ExtractOutcome, error) {
	args := m.Called(ctx, sessionID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExtractOutcome), args.Error(1)
}

func (m *MockReceiptService) RemoveResult(ctx context.Context, sessionID string, resultID uuid.UUID) error {
	args := m.Called(ctx, sessionID, resultID)
	return args.Error(0)
}

func (m *MockReceiptService) Reset(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockReceiptService) ExportCSV(ctx context.Context, sessionID string, w io.Writer) (string, error) {
	args := m.Called(ctx, sessionID, w)
	return args.String(0), args.Error(1)
}

func (m *MockReceiptService) ExportXLSX(ctx context.Context, sessionID string, w io.Writer) (string, error) {
	args := m.Called(ctx, sessionID, w)
	return args.String(0), args.Error(1)
}
