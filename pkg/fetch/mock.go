package fetch

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rotty/deb-audit/pkg/types"
)

// MockFetcher is a testify mock of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, key types.CacheKey) (types.Dataset, error) {
	ret := m.Called(ctx, key)
	ret0, ok := ret.Get(0).(types.Dataset)
	if !ok {
		return types.Dataset{}, ret.Error(1)
	}
	return ret0, ret.Error(1)
}
