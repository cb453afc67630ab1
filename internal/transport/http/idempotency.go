package http

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
)

const (
	idempotencyHeader = "Idempotency-Key"
	// idempotencyTTL ограничивает срок жизни ключа; дальше его чистит cleanup worker.
	idempotencyTTL = 24 * time.Hour
	// maxIdempotencyBody ограничивает тело запроса, читаемое целиком ради хэша.
	maxIdempotencyBody = 1 << 20
)

// responseRecorder буферизует ответ обработчика, чтобы сохранить его
// в idempotency-записи и воспроизводить при повторах.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// withIdempotency реализует обработку заголовка Idempotency-Key.
//
// Без заголовка запрос проходит насквозь. С заголовком первый запрос
// регистрирует ключ в статусе processing, выполняет обработчик и сохраняет
// ответ; повторы с тем же ключом и телом получают сохранённый ответ, повтор
// во время обработки или с другим телом отклоняется конфликтом.
func (h *Handler) withIdempotency(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(idempotencyHeader)
		if key == "" || h.idem == nil {
			next(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotencyBody))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "failed to read request body", nil)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		requestHash := hashRequest(r.Method, r.URL.Path, body)

		_, err = h.idem.CreateProcessing(r.Context(), key, requestHash, time.Now().UTC().Add(idempotencyTTL))
		switch {
		case err == nil:
			// Первый запрос с этим ключом.
		case errors.Is(err, domain.ErrIdempotencyHashMismatch):
			h.writeError(w, http.StatusConflict, domain.ErrIdempotencyHashMismatch.Error(), nil)
			return
		case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
			h.replayStored(w, r, key)
			return
		default:
			h.logger.WithError(err).Warn("idempotency registration failed")
			h.writeError(w, http.StatusInternalServerError, "internal error", nil)
			return
		}

		recorder := &responseRecorder{ResponseWriter: w}
		next(recorder, r)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}

		if status >= 200 && status < 300 {
			err = h.idem.MarkDone(r.Context(), key, recorder.body.Bytes(), status)
		} else {
			err = h.idem.MarkFailed(r.Context(), key, recorder.body.Bytes(), status)
		}
		if err != nil {
			h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
		}
	}
}

func (h *Handler) replayStored(w http.ResponseWriter, r *http.Request, key string) {
	record, err := h.idem.Get(r.Context(), key)
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to load idempotency record")
		h.writeError(w, http.StatusInternalServerError, "internal error", nil)
		return
	}

	if record.Status == domain.IdempotencyStatusProcessing {
		h.writeError(w, http.StatusConflict, "request with this idempotency key is still processing", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(record.HTTPStatus)
	if _, err := w.Write(record.ResponseBody); err != nil {
		h.logger.WithError(err).Warn("failed to replay idempotent response")
	}
}

func hashRequest(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{0})
	sum.Write([]byte(path))
	sum.Write([]byte{0})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}
