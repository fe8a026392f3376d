package memrepo_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/restmcp/internal/adapter/outbound/memrepo"
	"github.com/i2y/restmcp/internal/domain"
	"github.com/i2y/restmcp/internal/usecase"
)

func newTestRepo(t *testing.T) *memrepo.InMemoryToolRepository {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return memrepo.NewInMemoryToolRepository(logger)
}

func TestInMemoryToolRepository_SaveAndList(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	tool1 := domain.Tool{Name: "tool1", Description: "T1"}
	details1 := usecase.InvocationDetails{ToolName: "tool1", Host: "host1"}
	tool2 := domain.Tool{Name: "tool2", Description: "T2"}
	details2 := usecase.InvocationDetails{ToolName: "tool2", Host: "host2"}

	tests := []struct {
		name        string
		inTools     []domain.Tool
		inDetails   []usecase.InvocationDetails
		wantSaveErr bool
		wantList    []domain.Tool
	}{
		{
			name:      "Save single tool",
			inTools:   []domain.Tool{tool1},
			inDetails: []usecase.InvocationDetails{details1},
			wantList:  []domain.Tool{tool1},
		},
		{
			name:      "Save keeps catalogue order",
			inTools:   []domain.Tool{tool2, tool1},
			inDetails: []usecase.InvocationDetails{details2, details1},
			wantList:  []domain.Tool{tool2, tool1},
		},
		{
			name:      "Save empty list",
			inTools:   []domain.Tool{},
			inDetails: []usecase.InvocationDetails{},
			wantList:  []domain.Tool{},
		},
		{
			name:      "Save with empty tool name (skipped)",
			inTools:   []domain.Tool{{Name: "", Description: "Empty"}, tool1},
			inDetails: []usecase.InvocationDetails{{}, details1},
			wantList:  []domain.Tool{tool1},
		},
		{
			name:        "Error on mismatch length",
			inTools:     []domain.Tool{tool1},
			inDetails:   []usecase.InvocationDetails{details1, details2},
			wantSaveErr: true,
			wantList:    []domain.Tool{},
		},
		{
			name:        "Error on duplicate names",
			inTools:     []domain.Tool{tool1, tool1},
			inDetails:   []usecase.InvocationDetails{details1, details1},
			wantSaveErr: true,
			wantList:    []domain.Tool{},
		},
		{
			name:        "Error on misaligned details",
			inTools:     []domain.Tool{tool1, tool2},
			inDetails:   []usecase.InvocationDetails{details2, details1},
			wantSaveErr: true,
			wantList:    []domain.Tool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t)

			err := repo.Save(ctx, tt.inTools, tt.inDetails)
			if tt.wantSaveErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}

			listedTools, listErr := repo.List(ctx)
			require.NoError(listErr)
			assert.Equal(tt.wantList, listedTools)
		})
	}
}

func TestInMemoryToolRepository_FindByName(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	repo := newTestRepo(t)

	tool1 := domain.Tool{Name: "tool1", Description: "T1"}
	details1 := usecase.InvocationDetails{ToolName: "tool1", Host: "host1", HTTPMethod: domain.MethodGet}
	tool2 := domain.Tool{Name: "tool2", Description: "T2"}
	details2 := usecase.InvocationDetails{ToolName: "tool2", Host: "host2", HTTPMethod: domain.MethodPost}

	err := repo.Save(ctx, []domain.Tool{tool1, tool2}, []usecase.InvocationDetails{details1, details2})
	require.NoError(err)

	tests := []struct {
		name        string
		inName      string
		wantTool    *domain.Tool
		wantDetails *usecase.InvocationDetails
		wantErr     bool
	}{
		{name: "Find existing tool1", inName: "tool1", wantTool: &tool1, wantDetails: &details1},
		{name: "Find existing tool2", inName: "tool2", wantTool: &tool2, wantDetails: &details2},
		{name: "Find non-existent tool", inName: "tool3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actualTool, err := repo.FindToolByName(ctx, tt.inName)
			actualDetails, detailsErr := repo.FindInvocationDetailsByName(ctx, tt.inName)
			if tt.wantErr {
				assert.ErrorIs(err, usecase.ErrToolNotFound)
				assert.ErrorIs(detailsErr, usecase.ErrToolNotFound)
				assert.Nil(actualTool)
				assert.Nil(actualDetails)
				return
			}
			assert.NoError(err)
			assert.NoError(detailsErr)
			assert.Equal(tt.wantTool, actualTool)
			assert.Equal(tt.wantDetails, actualDetails)
		})
	}
}

func TestInMemoryToolRepository_SaveReplaces(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	repo := newTestRepo(t)

	old := domain.Tool{Name: "old", Description: "V1"}
	require.NoError(repo.Save(ctx, []domain.Tool{old}, []usecase.InvocationDetails{{ToolName: "old"}}))

	fresh := domain.Tool{Name: "fresh", Description: "V2"}
	require.NoError(repo.Save(ctx, []domain.Tool{fresh}, []usecase.InvocationDetails{{ToolName: "fresh", Host: "v2"}}))

	_, err := repo.FindToolByName(ctx, "old")
	assert.ErrorIs(err, usecase.ErrToolNotFound)

	list, err := repo.List(ctx)
	require.NoError(err)
	assert.Equal([]domain.Tool{fresh}, list)

	// a failed save keeps what was there
	assert.Error(repo.Save(ctx, []domain.Tool{old}, nil))
	list, err = repo.List(ctx)
	require.NoError(err)
	assert.Equal([]domain.Tool{fresh}, list)
}

func TestInMemoryToolRepository_ConcurrentReads(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("tool%d", i)
			_ = repo.Save(ctx, []domain.Tool{{Name: name}}, []usecase.InvocationDetails{{ToolName: name}})
		}(i)
		go func() {
			defer wg.Done()
			list, err := repo.List(ctx)
			assert.NoError(t, err)
			assert.LessOrEqual(t, len(list), 1)
		}()
	}
	wg.Wait()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = repo.FindInvocationDetailsByName(ctx, list[0].Name)
	assert.NoError(t, err)
}
