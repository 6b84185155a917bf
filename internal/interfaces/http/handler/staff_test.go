package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"testing"
	"time"

	appreport "github.com/karte/backend/internal/application/report"
	appstaff "github.com/karte/backend/internal/application/staff"
	"github.com/karte/backend/internal/domain/report"
	"github.com/karte/backend/internal/infrastructure/persistence"
	"github.com/karte/backend/internal/interfaces/http/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func staffService(s *testStack) *appstaff.StaffService {
	return appstaff.NewStaffService(persistence.NewDocstoreStaffRepository(s.store), zap.NewNop())
}

func withStaffRoutes(s *testStack) router.RouteRegistrar {
	return NewStaffHandler(staffService(s))
}

// withRosterReports mounts the report routes with the staff roster of the
// stack's own store
func withRosterReports(s *testStack) router.RouteRegistrar {
	reports := appreport.NewReportService(s.repo, time.UTC, zap.NewNop(), appreport.WithStaffRoster(staffService(s)))
	return NewReportHandler(reports, WithExporter(appreport.NewExportService(reports, zap.NewNop())))
}

func createStaff(t *testing.T, s *testStack, name string) appstaff.MemberResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/staff", "", appstaff.MemberRequest{Name: name})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var m appstaff.MemberResponse
	decodeData(t, w, &m)
	return m
}

func TestStaffHandler_CRUD(t *testing.T) {
	s := newTestStack(t, withStaffRoutes)

	sato := createStaff(t, s, "Sato")
	assert.NotEmpty(t, sato.ID)
	assert.False(t, sato.CreatedAt.IsZero())
	createStaff(t, s, "Ito")

	w := s.do(t, http.MethodGet, "/staff", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []appstaff.MemberResponse
	decodeData(t, w, &all)
	require.Len(t, all, 2)
	assert.Equal(t, "Ito", all[0].Name)

	w = s.do(t, http.MethodPut, "/staff/"+sato.ID, "", appstaff.MemberRequest{Name: "Sato", Role: "manager", Email: "sato@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated appstaff.MemberResponse
	decodeData(t, w, &updated)
	assert.Equal(t, "manager", updated.Role)

	w = s.do(t, http.MethodGet, "/staff/"+sato.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/staff/"+sato.ID, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, "/staff/"+sato.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/staff/"+sato.ID, "", appstaff.MemberRequest{Name: "Sato"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStaffHandler_Validation(t *testing.T) {
	s := newTestStack(t, withStaffRoutes)

	w := s.do(t, http.MethodPost, "/staff", "", appstaff.MemberRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/staff", "", appstaff.MemberRequest{Name: "Sato", Email: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStaffReport_ListsRegisteredStaffWithoutRecords(t *testing.T) {
	s := newTestStack(t, withSessionRoutes, withKarteRoutes, withStaffRoutes, withRosterReports)
	createStaff(t, s, "Ito")
	createStaff(t, s, "Sato")
	s.saveRecord(t, "Sato")
	now := time.Now().UTC()

	w := s.do(t, http.MethodGet, fmt.Sprintf("/reports/staff?year=%d&month=%d", now.Year(), int(now.Month())), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got []report.StaffPerformance
	decodeData(t, w, &got)
	require.Len(t, got, 2)
	assert.Equal(t, "Sato", got[0].StaffName)
	assert.Equal(t, 1, got[0].KarteCount)
	assert.Equal(t, "Ito", got[1].StaffName)
	assert.Equal(t, 0, got[1].KarteCount)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/reports/staff/export?year=%d&month=%d", now.Year(), int(now.Month())), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(w.Body.Bytes(), []byte("\xEF\xBB\xBF")))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Ito", rows[2][0])
}
