package server

import (
	"bytes"
	"context"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/internal/config"
	"github.com/Geniuskaa/buenafe_registration/pkg/database"
	"github.com/Geniuskaa/buenafe_registration/pkg/registration"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testToken = "admin123"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	conf := &config.Entity{
		App:    config.Application{Port: "3001"},
		DB:     config.Database{SqlitePath: filepath.Join(dir, "afemec.db")},
		Admin:  config.Admin{Password: testToken},
		Upload: config.Upload{Dir: filepath.Join(dir, "UPLOAD"), MaxSizeMB: 1},
	}

	ctx := context.Background()
	db, err := database.NewSqlite(ctx, conf.DB.SqlitePath)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	s := NewServer(ctx, zap.NewNop(), chi.NewRouter(), db, conf)
	require.NoError(t, s.Init(zap.NewAtomicLevel(), prometheus.NewRegistry()))
	return s
}

func request(t *testing.T, s *Server, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(AUTHORIZATION_HEADER, BEARER_PREFIX+token)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

type formFile struct {
	field, name string
	content     []byte
}

func multipartRequest(t *testing.T, s *Server, path string, fields map[string]string, files []formFile, token string) *httptest.ResponseRecorder {
	t.Helper()

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set(AUTHORIZATION_HEADER, BEARER_PREFIX+token)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), out))
}

func listPlayers(t *testing.T, s *Server, query string) []registration.Player {
	t.Helper()

	rec := request(t, s, http.MethodGet, "/api/admin/players"+query, nil, testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var players []registration.Player
	decodeBody(t, rec, &players)
	return players
}

func getStats(t *testing.T, s *Server) registration.Snapshot {
	t.Helper()

	rec := request(t, s, http.MethodGet, "/api/admin/stats", nil, testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap registration.Snapshot
	decodeBody(t, rec, &snap)
	return snap
}

func TestInscription_AnaGomez(t *testing.T) {
	s := newTestServer(t)

	rec := multipartRequest(t, s, "/api/inscripcion", map[string]string{
		"fullName":   "Ana Gomez",
		"dni":        "1234567",
		"teamName":   "halcones",
		"category":   "mayores",
		"playerType": "socio",
	}, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp inscriptionResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, inscriptionResponse{Success: true, Message: MSG_INSCRIPTION_OK, ID: 1}, resp)

	players := listPlayers(t, s, "")
	require.Len(t, players, 1)
	assert.Equal(t, "Ana Gomez", players[0].FullName)
	assert.False(t, players[0].CreatedAt.IsZero())
	assert.Nil(t, players[0].SocioName)
	assert.Nil(t, players[0].DniPlayerPath)
}

func TestInscription_WithPhotos(t *testing.T) {
	s := newTestServer(t)

	rec := multipartRequest(t, s, "/api/inscripcion", map[string]string{
		"fullName":   "Luis Perez",
		"dni":        "7654321",
		"teamName":   "tigres",
		"category":   "senior",
		"playerType": "conyuge",
		"socioName":  "Maria Perez",
		"socioDni":   "444",
	}, []formFile{
		{DNI_PLAYER_FILE, "cedula.png", []byte("png bytes")},
		{DNI_SOCIO_FILE, "socio.jpeg", []byte("jpeg bytes")},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	players := listPlayers(t, s, "")
	require.Len(t, players, 1)
	require.NotNil(t, players[0].DniPlayerPath)
	require.NotNil(t, players[0].DniSocioPath)
	require.NotNil(t, players[0].SocioName)
	assert.Equal(t, "Maria Perez", *players[0].SocioName)

	photo := request(t, s, http.MethodGet, *players[0].DniPlayerPath, nil, "")
	require.Equal(t, http.StatusOK, photo.Code)
	assert.Equal(t, "png bytes", photo.Body.String())
}

func TestUploadDirectoryIsNotListed(t *testing.T) {
	s := newTestServer(t)

	rec := multipartRequest(t, s, "/api/inscripcion", map[string]string{"fullName": "Ana Gomez", "dni": "1234567"},
		[]formFile{{DNI_PLAYER_FILE, "cedula.jpg", []byte("jpeg bytes")}}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	listing := request(t, s, http.MethodGet, "/UPLOAD/", nil, "")
	assert.Equal(t, http.StatusNotFound, listing.Code)
	assert.NotContains(t, listing.Body.String(), ".jpg")

	players := listPlayers(t, s, "")
	require.Len(t, players, 1)
	require.NotNil(t, players[0].DniPlayerPath)

	photo := request(t, s, http.MethodGet, *players[0].DniPlayerPath, nil, "")
	assert.Equal(t, http.StatusOK, photo.Code)
	assert.Equal(t, "jpeg bytes", photo.Body.String())
}

func TestInscription_FailureLeavesNoPhotos(t *testing.T) {
	s := newTestServer(t)
	uploads := s.cfg.Upload.Dir

	rec := multipartRequest(t, s, "/api/inscripcion", map[string]string{"fullName": "Ana"}, []formFile{
		{DNI_PLAYER_FILE, "cedula.png", []byte("png bytes")},
		{DNI_SOCIO_FILE, "socio.pdf", []byte("%PDF")},
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	entries, err := os.ReadDir(uploads)
	require.NoError(t, err)
	assert.Empty(t, entries)

	s.db.Close()

	rec = multipartRequest(t, s, "/api/inscripcion", map[string]string{"fullName": "Ana"}, []formFile{
		{DNI_PLAYER_FILE, "cedula.png", []byte("png bytes")},
		{DNI_SOCIO_FILE, "socio.jpg", []byte("jpeg bytes")},
	}, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	entries, err = os.ReadDir(uploads)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInscription_RejectsOtherFiles(t *testing.T) {
	s := newTestServer(t)

	rec := multipartRequest(t, s, "/api/inscripcion", map[string]string{"fullName": "Ana"},
		[]formFile{{DNI_PLAYER_FILE, "cedula.pdf", []byte("%PDF")}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, int64(0), getStats(t, s).Total)
}

func TestInscription_FileTooLarge(t *testing.T) {
	s := newTestServer(t)

	rec := multipartRequest(t, s, "/api/inscripcion", map[string]string{"fullName": "Ana"},
		[]formFile{{DNI_PLAYER_FILE, "cedula.png", bytes.Repeat([]byte("x"), 2<<20)}}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(0), getStats(t, s).Total)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	rec := request(t, s, http.MethodPost, "/api/admin/login", strings.NewReader(`{"password":"admin123"}`), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ok loginResponse
	decodeBody(t, rec, &ok)
	assert.Equal(t, loginResponse{Success: true, Token: testToken}, ok)

	rec = request(t, s, http.MethodPost, "/api/admin/login", strings.NewReader(`{"password":"nope"}`), "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var denied messageResponse
	decodeBody(t, rec, &denied)
	assert.Equal(t, messageResponse{Success: false, Message: "Contraseña incorrecta"}, denied)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/admin/players"},
		{http.MethodPost, "/api/admin/players/bulk"},
		{http.MethodPost, "/api/admin/players/import"},
		{http.MethodGet, "/api/admin/players/export"},
		{http.MethodDelete, "/api/admin/players/1"},
		{http.MethodGet, "/api/admin/stats"},
		{http.MethodPost, "/api/admin/mail/check"},
	}

	for _, route := range routes {
		for _, token := range []string{"", "wrong", testToken + " "} {
			rec := request(t, s, route.method, route.path, nil, token)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s %q", route.method, route.path, token)

			var resp messageResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, MSG_UNAUTHORIZED, resp.Message)
		}
	}
}

func TestBulk(t *testing.T) {
	s := newTestServer(t)

	body := `{"players":[
		{"fullName":"Ana","dni":1234567,"teamName":"halcones","category":"mayores","jerseyNumber":10},
		{"fullName":"Luis","dni":"7654321","teamName":"tigres","category":"senior","playerType":"adherente","socioName":"Maria"},
		{"fullName":"Marta","dni":"111","teamName":"halcones","category":"mayores","playerType":null,"socioName":""}
	]}`

	rec := request(t, s, http.MethodPost, "/api/admin/players/bulk", strings.NewReader(body), testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp importResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, importResponse{Success: true, Message: "3 jugadores importados correctamente.", Count: 3}, resp)

	players := listPlayers(t, s, "")
	require.Len(t, players, 3)

	// newest first: ids are increasing in input order
	assert.Equal(t, []string{"Marta", "Luis", "Ana"}, []string{players[0].FullName, players[1].FullName, players[2].FullName})
	assert.Equal(t, "1234567", players[2].Dni)
	assert.Equal(t, "10", players[2].JerseyNumber)
	assert.Equal(t, registration.PLAYER_TYPE_SOCIO, players[2].PlayerType)
	assert.Equal(t, registration.PLAYER_TYPE_SOCIO, players[0].PlayerType)
	assert.Nil(t, players[0].SocioName)
	require.NotNil(t, players[1].SocioName)
	assert.Equal(t, "Maria", *players[1].SocioName)

	assert.Equal(t, int64(3), getStats(t, s).Total)
}

func TestBulk_InvalidPayload(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{`{}`, `{"players":{"fullName":"Ana"}}`, `{"players":"Ana"}`, `not json`} {
		rec := request(t, s, http.MethodPost, "/api/admin/players/bulk", strings.NewReader(body), testToken)
		require.Equal(t, http.StatusBadRequest, rec.Code, body)

		var resp messageResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, messageResponse{Success: false, Message: MSG_INVALID_DATA}, resp)
	}

	rec := request(t, s, http.MethodPost, "/api/admin/players/bulk", strings.NewReader(`{"players":[]}`), testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp importResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 0, resp.Count)
}

func TestDeleteAndStats(t *testing.T) {
	s := newTestServer(t)

	body := `{"players":[
		{"fullName":"Ana","teamName":"halcones","category":"mayores"},
		{"fullName":"Luis","teamName":"halcones","category":"senior"},
		{"fullName":"Marta","teamName":"tigres","category":"mayores"}
	]}`
	require.Equal(t, http.StatusOK,
		request(t, s, http.MethodPost, "/api/admin/players/bulk", strings.NewReader(body), testToken).Code)

	snap := getStats(t, s)
	assert.Equal(t, int64(3), snap.Total)
	require.Len(t, snap.ByTeam, 2)

	rec := request(t, s, http.MethodDelete, "/api/admin/players/2", nil, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp messageResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, messageResponse{Success: true, Message: MSG_DELETED}, resp)

	assert.Equal(t, int64(2), getStats(t, s).Total)

	// deleting again is still a success
	rec = request(t, s, http.MethodDelete, "/api/admin/players/2", nil, testToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), getStats(t, s).Total)

	rec = request(t, s, http.MethodDelete, "/api/admin/players/abc", nil, testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFilter(t *testing.T) {
	s := newTestServer(t)

	body := `{"players":[
		{"fullName":"Ana Gomez","dni":"1","teamName":"halcones","category":"mayores"},
		{"fullName":"Luis Perez","dni":"2","teamName":"tigres","category":"senior"}
	]}`
	require.Equal(t, http.StatusOK,
		request(t, s, http.MethodPost, "/api/admin/players/bulk", strings.NewReader(body), testToken).Code)

	assert.Len(t, listPlayers(t, s, ""), 2)
	assert.Len(t, listPlayers(t, s, "?q=gomez"), 1)
	assert.Len(t, listPlayers(t, s, "?category=SENIOR"), 1)
	assert.Len(t, listPlayers(t, s, "?team=tigres&category=mayores"), 0)
}

func TestExport(t *testing.T) {
	s := newTestServer(t)

	rec := request(t, s, http.MethodGet, "/api/admin/players/export", nil, testToken)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var empty messageResponse
	decodeBody(t, rec, &empty)
	assert.Equal(t, MSG_EMPTY_LIST, empty.Message)

	body := `{"players":[
		{"fullName":"Ana","teamName":"halcones","category":"mayores"},
		{"fullName":"Luis","teamName":"tigres","category":"senior"}
	]}`
	require.Equal(t, http.StatusOK,
		request(t, s, http.MethodPost, "/api/admin/players/bulk", strings.NewReader(body), testToken).Code)

	rec = request(t, s, http.MethodGet, "/api/admin/players/export", nil, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, XLSX_CONTENT_TYPE, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "LISTA_BUENA_FE_AFEMEC_")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.ElementsMatch(t, []string{"MAYORES", "SENIOR"}, f.GetSheetList())
}

func TestImport(t *testing.T) {
	s := newTestServer(t)

	f := excelize.NewFile()
	header := []interface{}{"NOMBRE COMPLETO", "CÉDULA", "EQUIPO", "CATEGORÍA"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	for i, name := range []string{"Ana", "Luis"} {
		row := []interface{}{name, fmt.Sprint(i), "halcones", "MAYORES"}
		require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+2), &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rec := multipartRequest(t, s, "/api/admin/players/import", nil,
		[]formFile{{IMPORT_FILE, "lista.xlsx", buf.Bytes()}}, testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp importResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)

	players := listPlayers(t, s, "?category=mayores")
	assert.Len(t, players, 2)

	rec = multipartRequest(t, s, "/api/admin/players/import", nil,
		[]formFile{{IMPORT_FILE, "lista.xlsx", []byte("not a workbook")}}, testToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMailCheck_NoMailboxes(t *testing.T) {
	s := newTestServer(t)

	rec := request(t, s, http.MethodPost, "/api/admin/mail/check", nil, testToken)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)

	multipartRequest(t, s, "/api/inscripcion", map[string]string{"fullName": "Ana"}, nil, "")

	rec := request(t, s, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	out := rec.Body.String()
	assert.Contains(t, out, `afemec_registrations_total{source="form"} 1`)
	assert.Contains(t, out, `route="/api/inscripcion"`)
}
