package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"content_syncer/internal/domain"
	"content_syncer/internal/service/mocks"
	"content_syncer/testdata/utils"
)

type CleanupServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	articles   *mocks.MockArticleStore
	categories *mocks.MockCategoryStore
	syncRuns   *mocks.MockSyncRunStore
	txManager  *mocks.MockTransactionManager

	service *CleanupService
}

func (s *CleanupServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.articles = mocks.NewMockArticleStore(s.ctrl)
	s.categories = mocks.NewMockCategoryStore(s.ctrl)
	s.syncRuns = mocks.NewMockSyncRunStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewCleanupService(s.articles, s.categories, s.syncRuns, s.txManager, logger)
}

func (s *CleanupServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestCleanupServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CleanupServiceTestSuite))
}

func staleArticles() []domain.Article {
	return []domain.Article{
		{ID: 1, Title: "first", ExternalID: utils.Ptr("ext-1"), IsSynced: true},
		{ID: 2, Title: "second", ExternalID: utils.Ptr("ext-2"), IsSynced: true},
	}
}

func (s *CleanupServiceTestSuite) TestSweep_CutoffsFromOptions() {
	ctx := context.Background()
	before := time.Now()

	s.articles.EXPECT().ListCleanupCandidates(ctx, gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ageCutoff, keepRecentCutoff time.Time) ([]domain.Article, error) {
			after := time.Now()
			s.WithinRange(ageCutoff, before.AddDate(0, 0, -7), after.AddDate(0, 0, -7))
			s.WithinRange(keepRecentCutoff, before.Add(-24*time.Hour), after.Add(-24*time.Hour))
			return nil, nil
		},
	)

	result, err := s.service.Sweep(ctx, CleanupOptions{MinAgeDays: 7, KeepRecentHours: 24})

	s.NoError(err)
	s.Equal(0, result.Candidates)
	s.Equal(0, result.Deleted)
}

func (s *CleanupServiceTestSuite) TestSweep_DryRunListsWithoutDeleting() {
	ctx := context.Background()

	s.articles.EXPECT().ListCleanupCandidates(ctx, gomock.Any(), gomock.Any()).
		Return(staleArticles(), nil)
	// No transaction, no deletes, no audit entry.

	result, err := s.service.Sweep(ctx, CleanupOptions{MinAgeDays: 7, KeepRecentHours: 24, DryRun: true})

	s.NoError(err)
	s.True(result.DryRun)
	s.Equal(2, result.Candidates)
	s.Equal(0, result.Deleted)
	s.Len(result.Articles, 2)
	s.Equal("first", result.Articles[0].Title)
}

func (s *CleanupServiceTestSuite) TestSweep_RequiresConfirmation() {
	ctx := context.Background()

	s.articles.EXPECT().ListCleanupCandidates(ctx, gomock.Any(), gomock.Any()).
		Return(staleArticles(), nil)

	result, err := s.service.Sweep(ctx, CleanupOptions{MinAgeDays: 7, KeepRecentHours: 24})

	s.ErrorIs(err, ErrConfirmationRequired)
	s.Equal(2, result.Candidates)
	s.Equal(0, result.Deleted)
}

func (s *CleanupServiceTestSuite) TestSweep_ForceDeletesAndAudits() {
	ctx := context.Background()

	s.articles.EXPECT().ListCleanupCandidates(ctx, gomock.Any(), gomock.Any()).
		Return(staleArticles(), nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)

	s.categories.EXPECT().DetachArticle(gomock.Any(), int64(1)).Return(nil)
	s.categories.EXPECT().DetachArticle(gomock.Any(), int64(2)).Return(nil)
	s.articles.EXPECT().DeleteByIDs(gomock.Any(), []int64{1, 2}).Return(int64(2), nil)

	s.syncRuns.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, run *domain.SyncRun) (int64, error) {
			s.Equal(cleanupSourceURL, run.SourceURL)
			s.Equal("cleanup", run.KeyHash)
			s.Equal(2, run.Fetched)
			s.True(run.Success)

			s.Require().NotNil(run.Notes)
			var deleted []domain.DeletedArticle
			s.Require().NoError(json.Unmarshal([]byte(*run.Notes), &deleted))
			s.Len(deleted, 2)
			s.Equal(int64(1), deleted[0].ID)
			s.Equal("first", deleted[0].Title)
			return 20, nil
		},
	)

	result, err := s.service.Sweep(ctx, CleanupOptions{MinAgeDays: 7, KeepRecentHours: 24, Force: true})

	s.NoError(err)
	s.Equal(2, result.Candidates)
	s.Equal(2, result.Deleted)
}

func (s *CleanupServiceTestSuite) TestSweep_ConfirmedDeletesWithoutForce() {
	ctx := context.Background()

	s.articles.EXPECT().ListCleanupCandidates(ctx, gomock.Any(), gomock.Any()).
		Return(staleArticles()[:1], nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.categories.EXPECT().DetachArticle(gomock.Any(), int64(1)).Return(nil)
	s.articles.EXPECT().DeleteByIDs(gomock.Any(), []int64{1}).Return(int64(1), nil)
	s.syncRuns.EXPECT().Create(gomock.Any(), gomock.Any()).Return(int64(21), nil)

	result, err := s.service.Sweep(ctx, CleanupOptions{MinAgeDays: 7, KeepRecentHours: 24, Confirmed: true})

	s.NoError(err)
	s.Equal(1, result.Deleted)
}

func (s *CleanupServiceTestSuite) TestSweep_RollbackOnDeleteFailure() {
	ctx := context.Background()

	s.articles.EXPECT().ListCleanupCandidates(ctx, gomock.Any(), gomock.Any()).
		Return(staleArticles(), nil)

	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			// The real manager rolls back when fn errors; here we just
			// propagate the error.
			return fn(ctx)
		},
	)
	s.categories.EXPECT().DetachArticle(gomock.Any(), int64(1)).Return(nil)
	s.categories.EXPECT().DetachArticle(gomock.Any(), int64(2)).Return(nil)
	s.articles.EXPECT().DeleteByIDs(gomock.Any(), []int64{1, 2}).
		Return(int64(0), errors.New("deadlock detected"))
	// No audit entry after a failed delete.

	result, err := s.service.Sweep(ctx, CleanupOptions{MinAgeDays: 7, KeepRecentHours: 24, Force: true})

	s.Error(err)
	s.Equal(0, result.Deleted)
}

func (s *CleanupServiceTestSuite) TestSweep_NothingToDelete() {
	ctx := context.Background()

	s.articles.EXPECT().ListCleanupCandidates(ctx, gomock.Any(), gomock.Any()).
		Return([]domain.Article{}, nil)

	result, err := s.service.Sweep(ctx, CleanupOptions{MinAgeDays: 7, KeepRecentHours: 24, Force: true})

	s.NoError(err)
	s.Equal(0, result.Candidates)
	s.Equal(0, result.Deleted)
}
