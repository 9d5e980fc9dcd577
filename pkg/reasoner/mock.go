package reasoner

import (
	"context"

	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// MockClient is a configurable Client for tests.
type MockClient struct {
	Report *models.Report
	Err    error
	Calls  int
}

func (m *MockClient) GenerateReport(_ context.Context, _ *models.Aggregates) (*models.Report, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Report, nil
}
