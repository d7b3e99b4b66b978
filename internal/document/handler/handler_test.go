package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"lendgate/internal/activation/batch"
	activationhandler "lendgate/internal/activation/handler"
	activationservice "lendgate/internal/activation/service"
	activationstore "lendgate/internal/activation/store"
	"lendgate/internal/document"
	"lendgate/internal/document/service"
	"lendgate/internal/document/store"
	"lendgate/pkg/cache"
	"lendgate/pkg/testutil"
)

type DocumentHandlerSuite struct {
	suite.Suite
	router chi.Router
	cache  *cache.InMemory
}

// SetupTest mounts the document and activation handlers on one router over
// a shared batch cache, the way the server wires them.
func (s *DocumentHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	profiles := activationstore.NewInMemory()
	records := store.NewInMemoryRecords()
	s.cache = cache.NewInMemory()

	svc, err := service.New(records, store.NewInlineBackend())
	s.Require().NoError(err)

	activationSvc, err := activationservice.New(profiles, records)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(svc, logger, WithBatchCache(s.cache)).Register(s.router)
	activationhandler.New(activationSvc, batch.New(profiles, records), logger,
		activationhandler.WithBatchCache(s.cache, time.Minute),
	).Register(s.router)
}

func TestDocumentHandlerSuite(t *testing.T) {
	suite.Run(t, new(DocumentHandlerSuite))
}

// multipartRequest builds a multipart form with one file part plus metadata
// fields.
func (s *DocumentHandlerSuite) multipartRequest(method, path string, content []byte, docType string) *http.Request {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="front.png"`}
	header["Content-Type"] = []string{"image/png"}
	part, err := writer.CreatePart(header)
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)

	s.Require().NoError(writer.WriteField("documentType", docType))
	s.Require().NoError(writer.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func (s *DocumentHandlerSuite) upload(userID string) *document.Document {
	req := s.multipartRequest(http.MethodPost, "/documents", []byte("png-bytes"), "id_front")
	rr := testutil.DoRequest(s.router, testutil.WithUserID(req, userID))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return testutil.UnmarshalResponse[document.Document](s.T(), rr)
}

// TestUpload covers the multipart write path.
func (s *DocumentHandlerSuite) TestUpload() {
	s.Run("stores a valid upload", func() {
		doc := s.upload("user-1")
		s.NotEmpty(doc.ID)
		s.Equal(document.TypeIDFront, doc.DocumentType)
		s.Equal("front.png", doc.OriginalFilename)
		s.Equal(document.VerificationPending, doc.VerificationStatus)
	})

	s.Run("rejects a non-multipart body", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/documents", map[string]any{"file": "x"})
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "user-1"))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("rejects an unknown document type with the field list", func() {
		req := s.multipartRequest(http.MethodPost, "/documents", []byte("png-bytes"), "tax_return")
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "user-1"))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		testutil.AssertErrorCode(s.T(), rr, "validation_failed")
	})

	s.Run("cuts off a body above the request ceiling", func() {
		oversized := bytes.Repeat([]byte{0xCD}, 13<<20)
		req := s.multipartRequest(http.MethodPost, "/documents", oversized, "id_front")
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "user-1"))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		testutil.AssertErrorCode(s.T(), rr, "bad_request")
	})
}

// TestData covers the raw content read.
func (s *DocumentHandlerSuite) TestData() {
	doc := s.upload("user-1")

	s.Run("owner reads the content back", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/documents/"+doc.ID+"/data")
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "user-1"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal("png-bytes", rr.Body.String())
		s.Equal("image/png", rr.Header().Get("Content-Type"), "must serve the recorded mime type, not a sniffed one")
	})

	s.Run("another user gets not found", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/documents/"+doc.ID+"/data")
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "intruder"))

		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
		testutil.AssertErrorCode(s.T(), rr, "not_found")
	})
}

// TestReplace covers the swap endpoint.
func (s *DocumentHandlerSuite) TestReplace() {
	doc := s.upload("user-1")

	req := s.multipartRequest(http.MethodPut, "/documents/"+doc.ID, []byte("fresh-bytes"), "id_front")
	rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "user-1"))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	updated := testutil.UnmarshalResponse[document.Document](s.T(), rr)
	s.Equal(doc.ID, updated.ID)
	s.Equal(int64(len("fresh-bytes")), updated.FileSize)

	read := testutil.NewRequest(s.T(), http.MethodGet, "/documents/"+doc.ID+"/data")
	readRR := testutil.DoRequest(s.router, testutil.WithUserID(read, "user-1"))
	s.Equal("fresh-bytes", readRR.Body.String())
}

// TestDelete covers removal.
func (s *DocumentHandlerSuite) TestDelete() {
	doc := s.upload("user-1")

	req := testutil.NewRequest(s.T(), http.MethodDelete, "/documents/"+doc.ID)
	rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "user-1"))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	read := testutil.NewRequest(s.T(), http.MethodGet, "/documents/"+doc.ID+"/data")
	readRR := testutil.DoRequest(s.router, testutil.WithUserID(read, "user-1"))
	testutil.AssertStatus(s.T(), readRR, http.StatusNotFound)
}

// TestList covers the listing endpoint.
func (s *DocumentHandlerSuite) TestList() {
	s.upload("user-1")
	s.upload("user-1")
	s.upload("someone-else")

	req := testutil.NewRequest(s.T(), http.MethodGet, "/documents")
	rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "user-1"))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	docs := testutil.UnmarshalResponse[[]*document.Document](s.T(), rr)
	s.Len(*docs, 2)
}

// TestMutationsInvalidateBatchCache verifies a warm batch aggregate never
// outlives a document write: upload, replace, and delete must all drop the
// cached entry so the next batch read sees the change.
func (s *DocumentHandlerSuite) TestMutationsInvalidateBatchCache() {
	readBatch := func(userID string) *batch.Aggregate {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/activation/batch")
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, userID))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		return testutil.UnmarshalResponse[batch.Aggregate](s.T(), rr)
	}

	s.Run("upload refreshes a warm aggregate", func() {
		s.Zero(readBatch("user-1").Stats.Total)

		doc := s.upload("user-1")
		aggregate := readBatch("user-1")
		s.Equal(1, aggregate.Stats.Total)
		s.Len(aggregate.DocumentsByType[doc.DocumentType], 1)
	})

	s.Run("delete refreshes a warm aggregate", func() {
		doc := s.upload("user-2")
		s.Equal(1, readBatch("user-2").Stats.Total)

		req := testutil.NewRequest(s.T(), http.MethodDelete, "/documents/"+doc.ID)
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "user-2"))
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

		s.Zero(readBatch("user-2").Stats.Total)
	})

	s.Run("replace drops the cached entry", func() {
		doc := s.upload("user-3")
		readBatch("user-3")
		_, err := s.cache.Get(context.Background(), batch.CacheKey("user-3"))
		s.Require().NoError(err)

		req := s.multipartRequest(http.MethodPut, "/documents/"+doc.ID, []byte("fresh-bytes"), "id_front")
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, "user-3"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)

		_, err = s.cache.Get(context.Background(), batch.CacheKey("user-3"))
		s.ErrorIs(err, cache.ErrMiss)
	})
}
