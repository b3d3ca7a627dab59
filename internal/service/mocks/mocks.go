package mocks

import (
	"context"

	"github.com/samuelysliu/pdf-editor/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockReceiptVerifier struct {
	mock.Mock
}

func (m *MockReceiptVerifier) VerifyOneTime(ctx context.Context, productID, token string) (service.Verification, error) {
	args := m.Called(ctx, productID, token)
	return args.Get(0).(service.Verification), args.Error(1)
}

func (m *MockReceiptVerifier) VerifySubscription(ctx context.Context, subscriptionID, token string) (service.Verification, error) {
	args := m.Called(ctx, subscriptionID, token)
	return args.Get(0).(service.Verification), args.Error(1)
}

func (m *MockReceiptVerifier) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}

type MockWordConverter struct {
	mock.Mock
}

func (m *MockWordConverter) ConvertToDocx(ctx context.Context, pdf []byte) ([]byte, error) {
	args := m.Called(ctx, pdf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) RenderPage(ctx context.Context, pdf []byte, page, dpi int) ([]byte, error) {
	args := m.Called(ctx, pdf, page, dpi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	args := m.Called(ctx, topic, payload)
	return args.String(0), args.Error(1)
}

// MockStorage is a storage.Storage double.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Write(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

func (m *MockStorage) Read(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) EnsureDir(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}
