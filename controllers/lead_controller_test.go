package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conecte/models"
	"conecte/store"
)

func newLeadApp(t *testing.T) (*fiber.App, *store.FileStore) {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "db.json"), log.New(io.Discard, "", 0))
	require.NoError(t, err)

	app := fiber.New()
	leadController := NewLeadController(st, log.New(io.Discard, "", 0))
	app.Get("/leads", leadController.GetLeads)
	app.Post("/leads", leadController.CreateLead)
	app.Post("/leads/import", leadController.ImportLeads)
	app.Get("/tags", leadController.GetTags)
	return app, st
}

func importCSV(t *testing.T, app *fiber.App, csv string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "leads.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/leads/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestCreateLeadValidatesEmail(t *testing.T) {
	app, _ := newLeadApp(t)

	body := bytes.NewReader([]byte(`{"email":"not-an-email"}`))
	req := httptest.NewRequest(http.MethodPost, "/leads", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateLeadNormalizesEmail(t *testing.T) {
	app, st := newLeadApp(t)

	body := bytes.NewReader([]byte(`{"email":" Maria@Example.COM ","name":"Maria"}`))
	req := httptest.NewRequest(http.MethodPost, "/leads", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	leads, err := st.GetLeads()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "maria@example.com", leads[0].Email)
}

func TestImportLeadsSkipsRowsWithoutEmail(t *testing.T) {
	app, st := newLeadApp(t)

	resp := importCSV(t, app, "email,name,tags\n"+
		"a@example.com,A,vip\n"+
		",No Email,\n"+
		"broken-email,B,\n"+
		"b@example.com,B,\"vip, news\"\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data struct {
			Imported   int `json:"imported"`
			Duplicates int `json:"duplicates"`
			Skipped    int `json:"skipped"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Data.Imported)
	assert.Equal(t, 0, out.Data.Duplicates)
	assert.Equal(t, 2, out.Data.Skipped)

	leads, err := st.GetLeads()
	require.NoError(t, err)
	assert.Len(t, leads, 2)
}

func TestImportLeadsCountsDuplicates(t *testing.T) {
	app, st := newLeadApp(t)

	_, err := st.SaveLead(models.Lead{Email: "dup@example.com", Name: "Old"})
	require.NoError(t, err)

	resp := importCSV(t, app, "email,name\ndup@example.com,New\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Data struct {
			Imported   int `json:"imported"`
			Duplicates int `json:"duplicates"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 0, out.Data.Imported)
	assert.Equal(t, 1, out.Data.Duplicates)

	leads, err := st.GetLeads()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "New", leads[0].Name)
}

func TestImportLeadsAcceptsColumnAliases(t *testing.T) {
	app, st := newLeadApp(t)

	resp := importCSV(t, app, "E-Mail,Nome,Empresa,Telefone\n"+
		"c@example.com,Carla,Acme,555\n")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	leads, err := st.GetLeads()
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Carla", leads[0].Name)
	assert.Equal(t, "Acme", leads[0].Company)
	assert.Equal(t, "555", leads[0].Phone)
}

func TestImportLeadsRejectsUnknownExtension(t *testing.T) {
	app, _ := newLeadApp(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "leads.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("email\na@example.com\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/leads/import", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTagsReturnsUnion(t *testing.T) {
	app, st := newLeadApp(t)

	_, err := st.SaveLead(models.Lead{Email: "a@example.com", Tags: []string{"vip", "news"}})
	require.NoError(t, err)
	_, err = st.SaveLead(models.Lead{Email: "b@example.com", Tags: []string{"vip"}})
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tags", nil))
	require.NoError(t, err)

	var out struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"news", "vip"}, out.Data)
}
