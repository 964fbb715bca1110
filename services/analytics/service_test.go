package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecopoints-ledger/pkg/accesscontrol"
	"ecopoints-ledger/pkg/config"
	"ecopoints-ledger/pkg/middleware"
	"ecopoints-ledger/services/activity"
	"ecopoints-ledger/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

var now = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, recs ...*activity.ActivityRecord) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &activity.ActivityRecord{})
	repo := activity.NewRepository(db)
	for _, rec := range recs {
		require.NoError(t, repo.Append(context.Background(), rec))
	}

	cfg := &config.Config{}
	cfg.EcoPoints.StuckAwardAfter = 10 * time.Minute
	svc := NewService(ServiceParams{DB: db, Config: cfg})
	svc.now = func() time.Time { return now }
	return svc
}

func rec(id, userID string, typ activity.ActivityType, points int64, at time.Time) *activity.ActivityRecord {
	return &activity.ActivityRecord{ID: id, UserID: userID, ActivityType: typ, Points: points, CreatedAt: at}
}

func fixtures() []*activity.ActivityRecord {
	day := func(d int) time.Time { return time.Date(2026, time.March, d, 9, 0, 0, 0, time.UTC) }
	return []*activity.ActivityRecord{
		rec("a1", "u1", activity.Login, 1, day(8)),
		rec("a2", "u1", activity.Login, 1, day(9)),
		rec("a3", "u1", activity.PublishBlog, 10, day(9)),
		rec("a4", "u2", activity.Login, 1, day(9)),
		rec("a5", "u2", activity.Classification, 5, day(10)),
	}
}

func TestWindowDefaults(t *testing.T) {
	svc := newTestService(t)

	from, to, err := svc.Window(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, now, to)
	require.Equal(t, now.Add(-DefaultWindow), from)

	_, _, err = svc.Window(now, now.Add(-time.Hour))
	require.ErrorIs(t, err, ErrInvalidRange)
	_, _, err = svc.Window(now.Add(-2*MaxWindow), now)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestUserStats(t *testing.T) {
	svc := newTestService(t, fixtures()...)

	stats, err := svc.UserStats(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Activities)
	require.Equal(t, int64(12), stats.TotalPoints)
	require.Len(t, stats.ByType, 2)
	require.Equal(t, activity.Login, stats.ByType[0].ActivityType)
	require.Equal(t, int64(2), stats.ByType[0].Count)

	empty, err := svc.UserStats(context.Background(), "nobody")
	require.NoError(t, err)
	require.Zero(t, empty.Activities)
}

func TestActivitiesAndActiveUsersPerDay(t *testing.T) {
	svc := newTestService(t, fixtures()...)
	ctx := context.Background()

	series, err := svc.ActivitiesPerDay(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, []activity.DayStat{
		{Day: "2026-03-08", Count: 1},
		{Day: "2026-03-09", Count: 3},
		{Day: "2026-03-10", Count: 1},
	}, series.Days)

	dau, err := svc.DailyActiveUsers(ctx, time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), time.Time{})
	require.NoError(t, err)
	require.Equal(t, []activity.DayStat{
		{Day: "2026-03-09", Count: 2},
		{Day: "2026-03-10", Count: 1},
	}, dau.Days)
}

func TestTopActivities(t *testing.T) {
	svc := newTestService(t, fixtures()...)

	top, err := svc.TopActivities(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, activity.Login, top[0].ActivityType)
	require.Equal(t, int64(3), top[0].Count)
}

func TestPendingAwards(t *testing.T) {
	svc := newTestService(t,
		rec("old", "u1", activity.Login, 1, now.Add(-time.Hour)),
		rec("fresh", "u1", activity.Login, 1, now.Add(-time.Minute)),
	)

	p, err := svc.PendingAwards(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), p.Count)
	require.Len(t, p.Sample, 1)
	require.Equal(t, "old", p.Sample[0].ID)

	p, err = svc.PendingAwards(context.Background(), 30*time.Second, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), p.Count)
}

func TestHandlerRequiresRole(t *testing.T) {
	svc := newTestService(t, fixtures()...)
	enforcer, err := accesscontrol.NewEnforcer(&config.Config{})
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.Error())
	NewHandler(svc, enforcer).Register(r)

	get := func(path, role string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if role != "" {
			req.Header.Set(middleware.RoleHeader, role)
		}
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusUnauthorized, get("/v1/admin/analytics/activities/top", "").Code)
	require.Equal(t, http.StatusForbidden, get("/v1/admin/analytics/activities/top", "member").Code)

	w := get("/v1/admin/analytics/activities/top?limit=2", accesscontrol.RoleModerator)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []activity.TypeStat `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)

	w = get("/v1/admin/analytics/activities/daily?from=2026-03-09&to=2026-03-10", accesscontrol.RoleAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"count":3`)

	require.Equal(t, http.StatusBadRequest, get("/v1/admin/analytics/activities/daily?from=yesterday", accesscontrol.RoleAdmin).Code)
	require.Equal(t, http.StatusBadRequest, get("/v1/admin/analytics/awards/pending?older_than=-1m", accesscontrol.RoleAdmin).Code)
	require.Equal(t, http.StatusOK, get("/v1/admin/analytics/users/u1/stats", accesscontrol.RoleAdmin).Code)
}
