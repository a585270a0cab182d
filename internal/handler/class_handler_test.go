package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-class-api/internal/middleware"
	"github.com/noah-isme/church-class-api/internal/models"
	"github.com/noah-isme/church-class-api/internal/service"
	appErrors "github.com/noah-isme/church-class-api/pkg/errors"
	"github.com/noah-isme/church-class-api/pkg/middleware/requestid"
)

type classServiceMock struct {
	classes    []models.Class
	detail     *models.ClassDetail
	summary    *models.ClassSummary
	cached     bool
	err        error
	lastFilter models.ClassFilter
	lastCreate service.CreateClassRequest
	lastActor  *models.JWTClaims
	deletedID  string
}

func (m *classServiceMock) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	m.lastFilter = filter
	return m.classes, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(m.classes)}, m.err
}

func (m *classServiceMock) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	return m.detail, m.err
}

func (m *classServiceMock) Create(ctx context.Context, req service.CreateClassRequest, actor *models.JWTClaims) (*models.Class, error) {
	m.lastCreate = req
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.Class{ID: "class-1", Name: req.Name, HasLevels: req.HasLevels}, nil
}

func (m *classServiceMock) Update(ctx context.Context, id string, req service.UpdateClassRequest) (*models.Class, error) {
	return &models.Class{ID: id}, m.err
}

func (m *classServiceMock) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return m.err
}

func (m *classServiceMock) Summary(ctx context.Context, id string) (*models.ClassSummary, bool, error) {
	return m.summary, m.cached, m.err
}

func TestClassHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &classServiceMock{classes: []models.Class{{ID: "c1"}}}
	h := NewClassHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/classes?category=discipleship&status=active&search=%20grow%20&page=2&limit=5", nil)

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ClassCategoryDiscipleship, mockSvc.lastFilter.Category)
	assert.Equal(t, models.ClassStatusActive, mockSvc.lastFilter.Status)
	assert.Equal(t, "grow", mockSvc.lastFilter.Search)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 5, mockSvc.lastFilter.PageSize)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestClassHandlerCreatePassesActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &classServiceMock{}
	h := NewClassHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/classes", bytes.NewBufferString(`{"name":"Discipleship","category":"discipleship","has_levels":true}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff})

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.lastCreate.HasLevels)
	require.NotNil(t, mockSvc.lastActor)
	assert.Equal(t, "staff-1", mockSvc.lastActor.UserID)
}

func TestClassHandlerGetRendersStructure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &classServiceMock{detail: &models.ClassDetail{
		Class:     models.Class{ID: "disc", HasLevels: true},
		Structure: models.LeveledStructure{Levels: []models.Level{{ID: "l1", OrderNumber: 1}}},
	}}
	h := NewClassHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "classId", Value: "disc"}}
	c.Request, _ = http.NewRequest(http.MethodGet, "/classes/disc", nil)

	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Structure struct {
				Mode   string         `json:"mode"`
				Levels []models.Level `json:"levels"`
			} `json:"structure"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "leveled", body.Data.Structure.Mode)
	assert.Len(t, body.Data.Structure.Levels, 1)
}

func TestClassHandlerSummaryReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &classServiceMock{summary: &models.ClassSummary{ClassID: "disc", LevelCount: 2, SessionCount: 3, EnrolledCount: 2}, cached: true}
	h := NewClassHandler(mockSvc)

	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/classes/:classId/summary", middleware.WithResponseMeta(), h.Summary)

	req, _ := http.NewRequest(http.MethodGet, "/classes/disc/summary", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data models.ClassSummary    `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Data.SessionCount)
	assert.Equal(t, true, body.Meta["cache_hit"])
	assert.Equal(t, "req-42", body.Meta["request_id"])
	assert.Contains(t, body.Meta, "processing_time_ms")
}

func TestClassHandlerDeleteNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &classServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "class not found")}
	h := NewClassHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "classId", Value: "missing"}}
	c.Request, _ = http.NewRequest(http.MethodDelete, "/classes/missing", nil)

	h.Delete(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "missing", mockSvc.deletedID)
}
