package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/vendorcrm-backend/api/middleware"
	"github.com/angelmondragon/vendorcrm-backend/internal/media"
	"github.com/angelmondragon/vendorcrm-backend/internal/notifications"
	"github.com/angelmondragon/vendorcrm-backend/internal/orders"
	"github.com/angelmondragon/vendorcrm-backend/internal/realtime"
	"github.com/angelmondragon/vendorcrm-backend/internal/vendors"
	pkgAuth "github.com/angelmondragon/vendorcrm-backend/pkg/auth"
	"github.com/angelmondragon/vendorcrm-backend/pkg/config"
	"github.com/angelmondragon/vendorcrm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vendorcrm-backend/pkg/errors"
	"github.com/angelmondragon/vendorcrm-backend/pkg/logger"
	"github.com/angelmondragon/vendorcrm-backend/pkg/types"
)

type fakeOrders struct {
	orders.Service

	confirmIndex  int
	transferIndex int
	transferQty   int
	attachIndex   *int
	attachErr     error
}

func (f *fakeOrders) ConfirmItem(ctx context.Context, principal pkgAuth.Principal, orderID uuid.UUID, itemIndex int) (*orders.OrderDTO, error) {
	f.confirmIndex = itemIndex
	return &orders.OrderDTO{ID: orderID}, nil
}

func (f *fakeOrders) TransferItem(ctx context.Context, principal pkgAuth.Principal, orderID uuid.UUID, itemIndex, quantity int) (*orders.TransferResult, error) {
	f.transferIndex = itemIndex
	f.transferQty = quantity
	return &orders.TransferResult{Target: orders.OrderDTO{ID: uuid.New()}}, nil
}

func (f *fakeOrders) AttachImage(ctx context.Context, principal pkgAuth.Principal, orderID uuid.UUID, itemIndex *int, path string) (*orders.OrderDTO, error) {
	f.attachIndex = itemIndex
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	return &orders.OrderDTO{ID: orderID}, nil
}

type fakeStore struct {
	saved   []string
	removed []string
}

func (s *fakeStore) Save(ctx context.Context, folder media.Folder, fileName string, r io.Reader) (*media.Upload, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	path := "/uploads/" + string(folder) + "/" + fileName
	s.saved = append(s.saved, path)
	return &media.Upload{Path: path, ContentType: "image/png"}, nil
}

func (s *fakeStore) Remove(ctx context.Context, publicPath string) error {
	s.removed = append(s.removed, publicPath)
	return nil
}

func (s *fakeStore) MaxBytes() int64 { return 1 << 20 }

type fakeVendors struct {
	vendors.Service
	presence []uuid.UUID
}

func (f *fakeVendors) MarkPresence(ctx context.Context, vendorID uuid.UUID) error {
	f.presence = append(f.presence, vendorID)
	return nil
}

type fakeNotifications struct {
	notifications.Service
	updated int64
}

func (f *fakeNotifications) MarkAllRead(ctx context.Context, principal pkgAuth.Principal) (int64, error) {
	return f.updated, nil
}

type fakeSubscriber struct {
	messages []realtime.Message
}

func (f fakeSubscriber) Subscribe(principal pkgAuth.Principal) (<-chan realtime.Message, func()) {
	ch := make(chan realtime.Message, len(f.messages))
	for _, msg := range f.messages {
		ch <- msg
	}
	close(ch)
	return ch, func() {}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

// serve mounts handler on pattern so chi URL params resolve.
func serve(method, pattern string, handler http.HandlerFunc, req *http.Request, principal pkgAuth.Principal) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, handler)
	if principal != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) types.Envelope {
	t.Helper()
	var env types.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func vendorPrincipal() pkgAuth.VendorPrincipal {
	return pkgAuth.VendorPrincipal{VendorID: uuid.New()}
}

func TestTransferOrderItemPassesIndexAndQuantity(t *testing.T) {
	svc := &fakeOrders{}
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/items/2/transfer", strings.NewReader(`{"quantity":3}`))

	rec := serve(http.MethodPost, "/orders/{orderId}/items/{itemIndex}/transfer", TransferOrderItem(svc, logger.Nop()), req, vendorPrincipal())

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.transferIndex != 2 || svc.transferQty != 3 {
		t.Fatalf("unexpected args index=%d qty=%d", svc.transferIndex, svc.transferQty)
	}
}

func TestTransferOrderItemRejectsZeroQuantity(t *testing.T) {
	svc := &fakeOrders{}
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/items/0/transfer", strings.NewReader(`{"quantity":0}`))

	rec := serve(http.MethodPost, "/orders/{orderId}/items/{itemIndex}/transfer", TransferOrderItem(svc, logger.Nop()), req, vendorPrincipal())

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	env := decode(t, rec)
	if len(env.Errors) != 1 || env.Errors[0].Field != "quantity" {
		t.Fatalf("expected quantity field error, got %+v", env.Errors)
	}
}

func TestConfirmOrderItemRequiresIndex(t *testing.T) {
	svc := &fakeOrders{confirmIndex: -1}
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/confirm-item", strings.NewReader(`{}`))

	rec := serve(http.MethodPost, "/orders/{orderId}/confirm-item", ConfirmOrderItem(svc, logger.Nop()), req, vendorPrincipal())

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.confirmIndex != -1 {
		t.Fatal("service should not be called")
	}
}

func TestConfirmOrderItemAcceptsIndexZero(t *testing.T) {
	svc := &fakeOrders{confirmIndex: -1}
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/confirm-item", strings.NewReader(`{"itemIndex":0}`))

	rec := serve(http.MethodPost, "/orders/{orderId}/confirm-item", ConfirmOrderItem(svc, logger.Nop()), req, vendorPrincipal())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.confirmIndex != 0 {
		t.Fatalf("expected index 0, got %d", svc.confirmIndex)
	}
}

func TestCreateOrderRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"items":[{"productName":"x","quantity":1}],"total":5}`))

	rec := serve(http.MethodPost, "/orders", CreateOrder(&fakeOrders{}, logger.Nop()), req, vendorPrincipal())

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	env := decode(t, rec)
	if env.Success || len(env.Errors) == 0 {
		t.Fatalf("expected field errors, got %+v", env)
	}
}

func multipartImage(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, "photo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("\x89PNG\r\n\x1a\n")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadOrderItemImage(t *testing.T) {
	svc := &fakeOrders{}
	store := &fakeStore{}
	body, contentType := multipartImage(t, imageFormField)
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/item/1/image", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(http.MethodPost, "/orders/{orderId}/item/{itemIndex}/image", UploadOrderImage(svc, store, true, logger.Nop()), req, vendorPrincipal())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.attachIndex == nil || *svc.attachIndex != 1 {
		t.Fatalf("expected item index 1, got %v", svc.attachIndex)
	}
	if len(store.saved) != 1 || len(store.removed) != 0 {
		t.Fatalf("unexpected store calls saved=%v removed=%v", store.saved, store.removed)
	}
}

func TestUploadOrderImageRemovesFileWhenAttachFails(t *testing.T) {
	svc := &fakeOrders{attachErr: pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another vendor")}
	store := &fakeStore{}
	body, contentType := multipartImage(t, imageFormField)
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/image", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(http.MethodPost, "/orders/{orderId}/image", UploadOrderImage(svc, store, false, logger.Nop()), req, vendorPrincipal())

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if len(store.removed) != 1 || store.removed[0] != store.saved[0] {
		t.Fatalf("expected saved file removed, saved=%v removed=%v", store.saved, store.removed)
	}
}

func TestUploadOrderImageRequiresImageField(t *testing.T) {
	store := &fakeStore{}
	body, contentType := multipartImage(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/image", body)
	req.Header.Set("Content-Type", contentType)

	rec := serve(http.MethodPost, "/orders/{orderId}/image", UploadOrderImage(&fakeOrders{}, store, false, logger.Nop()), req, vendorPrincipal())

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if len(store.saved) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestVendorPresenceUsesTokenVendor(t *testing.T) {
	svc := &fakeVendors{}
	principal := vendorPrincipal()
	req := httptest.NewRequest(http.MethodPost, "/vendors/me/presence", nil)

	rec := serve(http.MethodPost, "/vendors/me/presence", VendorPresence(svc, logger.Nop()), req, principal)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if len(svc.presence) != 1 || svc.presence[0] != principal.VendorID {
		t.Fatalf("expected presence for %s, got %v", principal.VendorID, svc.presence)
	}
}

func TestVendorPresenceRejectsStaff(t *testing.T) {
	svc := &fakeVendors{}
	req := httptest.NewRequest(http.MethodPost, "/vendors/me/presence", nil)
	admin := pkgAuth.AdminPrincipal{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	rec := serve(http.MethodPost, "/vendors/me/presence", VendorPresence(svc, logger.Nop()), req, admin)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
	if len(svc.presence) != 0 {
		t.Fatal("service should not be called")
	}
}

func TestMarkAllNotificationsReadReportsCount(t *testing.T) {
	svc := &fakeNotifications{updated: 4}
	req := httptest.NewRequest(http.MethodPost, "/notifications/read-all", nil)

	rec := serve(http.MethodPost, "/notifications/read-all", MarkAllNotificationsRead(svc, logger.Nop()), req, vendorPrincipal())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	data, ok := decode(t, rec).Data.(map[string]any)
	if !ok || data["updated"] != float64(4) {
		t.Fatalf("unexpected data %+v", decode(t, rec).Data)
	}
}

func TestHandlersRequirePrincipal(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/notifications/read-all", nil)

	rec := serve(http.MethodPost, "/notifications/read-all", MarkAllNotificationsRead(&fakeNotifications{}, logger.Nop()), req, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestEventsStreamsVisibleMessages(t *testing.T) {
	msg := realtime.Message{
		ID:         uuid.NewString(),
		Type:       enums.EventNotificationPush,
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"title":"hi"}`),
	}
	req := httptest.NewRequest(http.MethodGet, "/events", nil)

	rec := serve(http.MethodGet, "/events", Events(fakeSubscriber{messages: []realtime.Message{msg}}, time.Minute, logger.Nop()), req, vendorPrincipal())

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "id: "+msg.ID+"\n") {
		t.Fatalf("missing event id in %q", body)
	}
	if !strings.Contains(body, "event: "+string(enums.EventNotificationPush)+"\n") {
		t.Fatalf("missing event type in %q", body)
	}
	if !strings.Contains(body, `"title":"hi"`) {
		t.Fatalf("missing payload in %q", body)
	}
}

func TestHealthReadyReportsFailedDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}
	handler := HealthReady(cfg, logger.Nop(), Dependency{Name: "postgres", Pinger: failingPinger{}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	if rec.Header().Get("X-VendorCRM-Env") != "dev" {
		t.Fatal("expected env header")
	}
}
