package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ecopoints-ledger/pkg/accesscontrol"
	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/featureflags"
	"ecopoints-ledger/pkg/middleware"
	"ecopoints-ledger/services/activity"
	"ecopoints-ledger/services/aggregate"
	"ecopoints-ledger/services/notification"
	"ecopoints-ledger/services/policy"
	dbtest "ecopoints-ledger/services/testutil"
	"ecopoints-ledger/services/user"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (f *fakeNotifier) NotifyMany(_ context.Context, msgs []notification.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
}

type fakePublisher struct {
	publishFn func(ctx context.Context, topic string, key, value []byte) error
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	return f.publishFn(ctx, topic, key, value)
}

// failingAggregates fails every write so awards stop after the record append.
type failingAggregates struct {
	aggregate.Repository
	incrementFn func(ctx context.Context, tx *gorm.DB, entry aggregate.HistoryEntry) (int64, error)
}

func (f *failingAggregates) Increment(ctx context.Context, tx *gorm.DB, entry aggregate.HistoryEntry) (int64, error) {
	return f.incrementFn(ctx, tx, entry)
}

func newTestService(t *testing.T, users ...string) (*gorm.DB, *Service) {
	t.Helper()
	db := dbtest.NewTestDB(t,
		&activity.ActivityRecord{},
		&aggregate.EcoPoint{},
		&aggregate.HistoryEntry{},
		&user.User{},
		&user.UserBadge{},
	)

	repo := user.NewRepository(db)
	for _, id := range users {
		require.NoError(t, repo.Register(context.Background(), &user.User{ID: id, Username: id, IsActive: true}))
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	pol, err := policy.New(policy.DefaultBadges)
	require.NoError(t, err)

	return db, NewService(ServiceParams{DB: db, Node: node, Config: &config.Config{}, Policy: pol})
}

func badgeNames(badges []policy.Badge) []string {
	names := make([]string, 0, len(badges))
	for _, b := range badges {
		names = append(names, b.Name)
	}
	return names
}

func TestAwardFirstActivity(t *testing.T) {
	_, svc := newTestService(t, "u1")
	ctx := context.Background()
	before := testutil.ToFloat64(awardsTotal.WithLabelValues(outcomeAccepted))

	res, err := svc.Award(ctx, AwardRequest{UserID: "u1", ActivityType: "publish_blog", Points: 10, Description: "first post"})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.NotEmpty(t, res.ActivityID)
	require.Equal(t, int64(10), res.NewTotal)
	require.Equal(t, 1, res.NewLevel)
	require.False(t, res.LevelUp)
	require.Empty(t, res.BadgesEarned)
	require.Equal(t, before+1, testutil.ToFloat64(awardsTotal.WithLabelValues(outcomeAccepted)))

	rec, err := svc.activities.Get(ctx, res.ActivityID)
	require.NoError(t, err)
	require.True(t, rec.PointsAwarded)
	require.Equal(t, activity.PublishBlog, rec.ActivityType)

	history, err := svc.History(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, res.ActivityID, history[0].ActivityID)
}

func TestAwardSequences(t *testing.T) {
	type step struct {
		typ    string
		points int64
		total  int64
		level  int
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{"blog then comment", []step{
			{"publish_blog", 5, 5, 1},
			{"comment_blog", 2, 7, 1},
		}},
		{"level changes on the award that reaches 100", []step{
			{"complete_campaign", 40, 40, 1},
			{"complete_campaign", 60, 100, 2},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, svc := newTestService(t, "u1")
			for i, st := range tt.steps {
				res, err := svc.Award(context.Background(), AwardRequest{UserID: "u1", ActivityType: st.typ, Points: st.points})
				require.NoError(t, err, "step %d", i)
				require.Equal(t, st.total, res.NewTotal, "step %d", i)
				require.Equal(t, st.level, res.NewLevel, "step %d", i)
			}
		})
	}
}

func TestAwardCrossingThresholdEarnsBadge(t *testing.T) {
	_, svc := newTestService(t, "u1")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.Award(ctx, AwardRequest{UserID: "u1", ActivityType: "classification", Points: 10})
		require.NoError(t, err)
	}

	res, err := svc.Award(ctx, AwardRequest{UserID: "u1", ActivityType: "classification", Points: 15})
	require.NoError(t, err)
	require.Equal(t, int64(55), res.NewTotal)
	require.Equal(t, []string{"Eco Explorer"}, badgeNames(res.BadgesEarned))

	// already held, not granted again
	res, err = svc.Award(ctx, AwardRequest{UserID: "u1", ActivityType: "classification", Points: 1})
	require.NoError(t, err)
	require.Empty(t, res.BadgesEarned)

	sum, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(56), sum.TotalPoints)
	require.Len(t, sum.Badges, 1)
	require.Equal(t, "eco-explorer", sum.Badges[0].Slug)
	require.NotNil(t, sum.LastActive)
}

func TestAwardLevelUpNotifies(t *testing.T) {
	_, svc := newTestService(t, "u1")
	n := &fakeNotifier{}
	svc.notifier = n

	res, err := svc.Award(context.Background(), AwardRequest{UserID: "u1", ActivityType: "complete_campaign", Points: 250})
	require.NoError(t, err)
	require.Equal(t, 3, res.NewLevel)
	require.True(t, res.LevelUp)
	require.Equal(t, []string{"Eco Explorer", "Eco Warrior"}, badgeNames(res.BadgesEarned))

	require.Len(t, n.msgs, 3)
	require.Equal(t, notification.KindBadge, n.msgs[0].Kind)
	require.Equal(t, notification.KindBadge, n.msgs[1].Kind)
	require.Equal(t, notification.KindRank, n.msgs[2].Kind)
	for _, m := range n.msgs {
		require.Equal(t, "u1", m.UserID)
	}
}

func TestAwardZeroPointsStillEvaluated(t *testing.T) {
	db, svc := newTestService(t, "u1")

	res, err := svc.Award(context.Background(), AwardRequest{UserID: "u1", ActivityType: "registration"})
	require.NoError(t, err)
	require.Equal(t, int64(0), res.NewTotal)
	require.Equal(t, []string{"Welcome"}, badgeNames(res.BadgesEarned))

	var history int64
	require.NoError(t, db.Model(&aggregate.HistoryEntry{}).Count(&history).Error)
	require.Zero(t, history)

	rec, err := svc.activities.Get(context.Background(), res.ActivityID)
	require.NoError(t, err)
	require.True(t, rec.PointsAwarded)

	// no points applied yet, so there is no last-active time
	sum, err := svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	require.Nil(t, sum.LastActive)

	_, err = svc.Award(context.Background(), AwardRequest{UserID: "u1", ActivityType: "login", Points: 1})
	require.NoError(t, err)
	sum, err = svc.Summary(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, sum.LastActive)
}

func TestAwardConcurrentSum(t *testing.T) {
	_, svc := newTestService(t, "u1")
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Award(ctx, AwardRequest{UserID: "u1", ActivityType: "like_blog", Points: 2})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sum, err := svc.Summary(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(100), sum.TotalPoints)
	require.Equal(t, 2, sum.Level)

	acts, err := svc.Activities(ctx, "u1", activity.MaxLimit)
	require.NoError(t, err)
	require.Len(t, acts, 50)
}

func TestAwardRejectsInvalidRequests(t *testing.T) {
	db, svc := newTestService(t, "u1")
	ctx := context.Background()

	tests := []struct {
		name string
		req  AwardRequest
		want error
	}{
		{"unknown type", AwardRequest{UserID: "u1", ActivityType: "nonexistent", Points: 5}, ErrInvalidActivityType},
		{"negative points", AwardRequest{UserID: "u1", ActivityType: "login", Points: -1}, ErrInvalidPoints},
		{"unknown user", AwardRequest{UserID: "ghost", ActivityType: "login", Points: 1}, ErrUserNotFound},
		{"unencodable metadata", AwardRequest{UserID: "u1", ActivityType: "login", Points: 1, Metadata: map[string]any{"ch": make(chan int)}}, ErrInvalidMetadata},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Award(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
			require.Nil(t, res)
		})
	}

	var n int64
	require.NoError(t, db.Model(&activity.ActivityRecord{}).Count(&n).Error)
	require.Zero(t, n)

	agg, err := svc.aggregates.Get(ctx, "u1")
	require.NoError(t, err)
	require.Zero(t, agg.TotalPoints)
}

func TestAwardInactiveUser(t *testing.T) {
	_, svc := newTestService(t, "u1")
	ctx := context.Background()
	require.NoError(t, svc.users.Deactivate(ctx, "u1"))

	_, err := svc.Award(ctx, AwardRequest{UserID: "u1", ActivityType: "login", Points: 1})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAwardAggregateFailureLeavesRecordPending(t *testing.T) {
	db, svc := newTestService(t, "u1")
	ctx := context.Background()
	n := &fakeNotifier{}
	svc.notifier = n
	svc.aggregates = &failingAggregates{
		Repository: svc.aggregates,
		incrementFn: func(context.Context, *gorm.DB, aggregate.HistoryEntry) (int64, error) {
			return 0, errors.New("connection reset")
		},
	}
	before := testutil.ToFloat64(awardsTotal.WithLabelValues(outcomeAggregateUnavailable))

	res, err := svc.Award(ctx, AwardRequest{UserID: "u1", ActivityType: "share_content", Points: 80})
	require.ErrorIs(t, err, ErrAggregateUnavailable)
	require.Nil(t, res)
	require.Equal(t, before+1, testutil.ToFloat64(awardsTotal.WithLabelValues(outcomeAggregateUnavailable)))
	require.Empty(t, n.msgs)

	var recs []activity.ActivityRecord
	require.NoError(t, db.Find(&recs).Error)
	require.Len(t, recs, 1)
	require.False(t, recs[0].PointsAwarded)

	var badges int64
	require.NoError(t, db.Model(&user.UserBadge{}).Count(&badges).Error)
	require.Zero(t, badges)

	m := &Monitor{activities: svc.activities, after: time.Minute, now: func() time.Time { return time.Now().Add(time.Hour) }}
	pending, err := m.Check(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)
	require.Equal(t, float64(1), testutil.ToFloat64(pendingAwards))
}

func TestAwardPublishesEvent(t *testing.T) {
	_, svc := newTestService(t, "u1")
	svc.topic = "ecopoints.awarded"

	var (
		gotTopic string
		gotKey   string
		event    AwardedEvent
	)
	svc.events = &fakePublisher{publishFn: func(_ context.Context, topic string, key, value []byte) error {
		gotTopic, gotKey = topic, string(key)
		return json.Unmarshal(value, &event)
	}}

	res, err := svc.Award(context.Background(), AwardRequest{UserID: "u1", ActivityType: "join_campaign", Points: 60})
	require.NoError(t, err)
	require.Equal(t, "ecopoints.awarded", gotTopic)
	require.Equal(t, "u1", gotKey)
	require.Equal(t, res.ActivityID, event.ActivityID)
	require.Equal(t, int64(60), event.NewTotal)
	require.Equal(t, []string{"Eco Explorer"}, event.Badges)
}

func TestAwardIgnoresPublishFailure(t *testing.T) {
	_, svc := newTestService(t, "u1")
	svc.topic = "ecopoints.awarded"
	svc.events = &fakePublisher{publishFn: func(context.Context, string, []byte, []byte) error {
		return errors.New("broker down")
	}}

	res, err := svc.Award(context.Background(), AwardRequest{UserID: "u1", ActivityType: "login", Points: 1})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.NewTotal)
}

func TestMonitorIgnoresFreshRecords(t *testing.T) {
	_, svc := newTestService(t, "u1")
	ctx := context.Background()

	require.NoError(t, svc.activities.Append(ctx, &activity.ActivityRecord{ID: "a1", UserID: "u1", ActivityType: activity.Login, Points: 1}))

	m := &Monitor{activities: svc.activities, after: 10 * time.Minute, now: time.Now}
	pending, err := m.Check(ctx)
	require.NoError(t, err)
	require.Zero(t, pending)
}

func TestSummaryUnknownUser(t *testing.T) {
	_, svc := newTestService(t)

	_, err := svc.Summary(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.History(context.Background(), "ghost", 10)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestHandler(t *testing.T) {
	_, svc := newTestService(t, "u1")
	r := newTestRouter(t, svc)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		return serve(r, method, path, body, accesscontrol.RoleProducer)
	}

	award := `{"user_id":"u1","activity_type":"daily_checkin","points":5}`
	require.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/v1/ecopoints/award", award, "").Code)
	require.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/v1/ecopoints/award", award, accesscontrol.RoleModerator).Code)

	w := do(http.MethodPost, "/v1/ecopoints/award", award)
	require.Equal(t, http.StatusOK, w.Code)
	var res AwardResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, int64(5), res.NewTotal)

	w = do(http.MethodPost, "/v1/ecopoints/award", `{"user_id":"u1","activity_type":"nonexistent","points":5}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_ACTIVITY_TYPE")

	w = do(http.MethodPost, "/v1/ecopoints/award", `{"activity_type":"login"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodGet, "/v1/users/ghost/ecopoints", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(http.MethodGet, "/v1/users/u1/ecopoints", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sum Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	require.Equal(t, int64(5), sum.TotalPoints)

	w = do(http.MethodGet, fmt.Sprintf("/v1/users/%s/activities?limit=abc", "u1"), "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "daily_checkin")
}

func newTestRouter(t *testing.T, svc *Service) *gin.Engine {
	t.Helper()
	enforcer, err := accesscontrol.NewEnforcer(&config.Config{})
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(svc, enforcer).Register(r)
	return r
}

func serve(r http.Handler, method, path, body, role string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(middleware.RoleHeader, role)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestSyncUserKeepsLevel(t *testing.T) {
	ctx := context.Background()
	_, svc := newTestService(t, "u1")

	_, err := svc.Award(ctx, AwardRequest{UserID: "u1", ActivityType: "admin_action", Points: 250})
	require.NoError(t, err)

	u, err := svc.SyncUser(ctx, SyncUserRequest{ID: "u1", Username: "u1", Name: "Alice"})
	require.NoError(t, err)
	require.Equal(t, "Alice", u.Name)
	require.Equal(t, 3, u.Level)
	require.True(t, u.IsActive)

	inactive := false
	u, err = svc.SyncUser(ctx, SyncUserRequest{ID: "u2", Username: "u2", IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, 1, u.Level)
	require.False(t, u.IsActive)
}

func TestDeactivateUser(t *testing.T) {
	ctx := context.Background()
	_, svc := newTestService(t, "u1")

	require.NoError(t, svc.DeactivateUser(ctx, "u1"))
	require.ErrorIs(t, svc.DeactivateUser(ctx, "ghost"), ErrUserNotFound)

	_, err := svc.Award(ctx, AwardRequest{UserID: "u1", ActivityType: "login", Points: 1})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminUserRoutes(t *testing.T) {
	_, svc := newTestService(t, "u1")
	r := newTestRouter(t, svc)

	body := `{"id":"u2","username":"bob","name":"Bob"}`
	require.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/v1/admin/users", body, "").Code)
	require.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/v1/admin/users", body, accesscontrol.RoleModerator).Code)

	w := serve(r, http.MethodPost, "/v1/admin/users", body, accesscontrol.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	var u user.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	require.Equal(t, "u2", u.ID)
	require.True(t, u.IsActive)

	require.Equal(t, http.StatusBadRequest, serve(r, http.MethodPost, "/v1/admin/users", `{"username":"x"}`, accesscontrol.RoleAdmin).Code)

	require.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/v1/admin/users/u2/deactivate", "", accesscontrol.RoleAdmin).Code)
	require.Equal(t, http.StatusNotFound, serve(r, http.MethodPost, "/v1/admin/users/ghost/deactivate", "", accesscontrol.RoleAdmin).Code)
}

// stalledQueue never accepts a task; every enqueue waits for its deadline.
type stalledQueue struct{}

func (stalledQueue) Enqueue(ctx context.Context, _ *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAwardDoesNotWaitForNotifications(t *testing.T) {
	db, svc := newTestService(t, "u1")
	notifier := notification.NewService(notification.ServiceParams{
		DB:       db,
		Config:   &config.Config{},
		Enqueuer: stalledQueue{},
		Flags:    featureflags.Static{},
	})
	svc.notifier = notifier

	start := time.Now()
	res, err := svc.Award(context.Background(), AwardRequest{UserID: "u1", ActivityType: "complete_campaign", Points: 250})
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.True(t, res.LevelUp)
	require.NotEmpty(t, res.BadgesEarned)
	require.Less(t, elapsed, 500*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, notifier.Drain(ctx))
}
