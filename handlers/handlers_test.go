package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"complaint-service/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeService struct {
	addErr    error
	getErr    error
	updateErr error
	listErr   error

	lastCountry string
	lastContent string
	complaint   *models.Complaint
}

func (f *fakeService) AddComplaint(ctx context.Context, req *models.CreateComplaintRequest, country string) (*models.Complaint, error) {
	f.lastCountry = country
	if f.addErr != nil {
		return nil, f.addErr
	}
	return f.complaint, nil
}

func (f *fakeService) GetComplaint(ctx context.Context, id string) (*models.Complaint, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.complaint, nil
}

func (f *fakeService) ListComplaints(ctx context.Context, page, size int) ([]models.Complaint, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []models.Complaint{*f.complaint}, nil
}

func (f *fakeService) UpdateComplaint(ctx context.Context, id, content string) (*models.Complaint, error) {
	f.lastContent = content
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.complaint, nil
}

type fakeResolver struct {
	lastIP  string
	country string
}

func (f *fakeResolver) CountryByIP(ctx context.Context, ip string) string {
	f.lastIP = ip
	return f.country
}

func testComplaint() *models.Complaint {
	return &models.Complaint{
		ID:          uuid.NewString(),
		ProductID:   "p1",
		Content:     "c1",
		Reporter:    "r1",
		Country:     "Poland",
		ReportCount: 1,
		CreatedAt:   time.Now().UTC(),
	}
}

func setupTest(service *fakeService, resolver *fakeResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(NewHandlers(service, resolver))
}

func TestAddComplaintReturnsComplaint(t *testing.T) {
	service := &fakeService{complaint: testComplaint()}
	resolver := &fakeResolver{country: "Poland"}
	router := setupTest(service, resolver)

	body, _ := json.Marshal(models.CreateComplaintRequest{ProductID: "p1", Content: "c1", Reporter: "r1"})
	req := httptest.NewRequest("POST", "/api/v1/complaints", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Poland", service.lastCountry)

	var got models.Complaint
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "p1", got.ProductID)
	assert.Equal(t, 1, got.ReportCount)
}

func TestAddComplaintPrefersForwardedForHeader(t *testing.T) {
	service := &fakeService{complaint: testComplaint()}
	resolver := &fakeResolver{country: "Poland"}
	router := setupTest(service, resolver)

	body, _ := json.Marshal(models.CreateComplaintRequest{ProductID: "p1", Content: "c1", Reporter: "r1"})
	req := httptest.NewRequest("POST", "/api/v1/complaints", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "203.0.113.7", resolver.lastIP)
}

func TestAddComplaintRejectsInvalidBody(t *testing.T) {
	service := &fakeService{complaint: testComplaint()}
	router := setupTest(service, &fakeResolver{})

	req := httptest.NewRequest("POST", "/api/v1/complaints", bytes.NewBufferString(`{"content":"c1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddComplaintMapsCreationFailure(t *testing.T) {
	service := &fakeService{addErr: &models.CreationFailedError{Err: fmt.Errorf("boom")}}
	router := setupTest(service, &fakeResolver{})

	body, _ := json.Marshal(models.CreateComplaintRequest{ProductID: "p1", Content: "c1", Reporter: "r1"})
	req := httptest.NewRequest("POST", "/api/v1/complaints", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetComplaintNotFound(t *testing.T) {
	service := &fakeService{getErr: models.ErrComplaintNotFound}
	router := setupTest(service, &fakeResolver{})

	req := httptest.NewRequest("GET", "/api/v1/complaints/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetComplaintRejectsMalformedID(t *testing.T) {
	service := &fakeService{complaint: testComplaint()}
	router := setupTest(service, &fakeResolver{})

	req := httptest.NewRequest("GET", "/api/v1/complaints/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetComplaintMapsUnexpectedErrorTo500(t *testing.T) {
	service := &fakeService{getErr: errors.New("connection lost")}
	router := setupTest(service, &fakeResolver{})

	req := httptest.NewRequest("GET", "/api/v1/complaints/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Internal causes stay out of the response body.
	assert.Equal(t, "an unexpected error occurred", resp.Error)
}

func TestListComplaints(t *testing.T) {
	service := &fakeService{complaint: testComplaint()}
	router := setupTest(service, &fakeResolver{})

	req := httptest.NewRequest("GET", "/api/v1/complaints?page=0&size=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var got []models.Complaint
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}

func TestUpdateComplaintNotFound(t *testing.T) {
	service := &fakeService{updateErr: models.ErrComplaintNotFound}
	router := setupTest(service, &fakeResolver{})

	req := httptest.NewRequest("PUT", "/api/v1/complaints/"+uuid.NewString(), bytes.NewBufferString(`{"content":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateComplaintPassesContentThrough(t *testing.T) {
	service := &fakeService{complaint: testComplaint()}
	router := setupTest(service, &fakeResolver{})

	req := httptest.NewRequest("PUT", "/api/v1/complaints/"+uuid.NewString(), bytes.NewBufferString(`{"content":"updated"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "updated", service.lastContent)
}

func TestHealth(t *testing.T) {
	service := &fakeService{complaint: testComplaint()}
	router := setupTest(service, &fakeResolver{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
