package services

import (
	"context"
	"net/http"

	"github.com/anayy09/FinMate/internal/client/client"
	"github.com/anayy09/FinMate/internal/client/models"
	"github.com/anayy09/FinMate/internal/common"
)

const (
	PathSessions     = common.APIPrefix + "/user/sessions/"
	PathLogoutDevice = common.APIPrefix + "/user/logout-device/"
)

// Device is a session record as shown to the user. Current is a guess based
// on the device descriptor this client sends; it is never used to decide
// anything.
type Device struct {
	models.SessionRecord
	Current bool
}

// DeviceService lists and revokes the account's server-side sessions.
type DeviceService struct {
	session    *SessionController
	gw         Gateway
	descriptor string
}

// NewDeviceService builds the service. descriptor is the User-Agent this
// client identifies itself with.
func NewDeviceService(session *SessionController, gw Gateway, descriptor string) *DeviceService {
	return &DeviceService{session: session, gw: gw, descriptor: descriptor}
}

// List returns every active session of the account.
func (s *DeviceService) List(ctx context.Context) ([]Device, error) {
	if err := s.session.RequireAuthenticated(); err != nil {
		return nil, err
	}

	var records []models.SessionRecord
	if err := s.gw.DoJSON(ctx, http.MethodGet, PathSessions, nil, &records, nil); err != nil {
		return nil, err
	}

	devices := make([]Device, len(records))
	current := -1
	for i, r := range records {
		devices[i] = Device{SessionRecord: r}
		if s.descriptor == "" || r.DeviceInfo != s.descriptor {
			continue
		}
		// The newest matching row is the likeliest to be ours.
		if current < 0 || r.CreatedAt.After(records[current].CreatedAt) {
			current = i
		}
	}
	if current >= 0 {
		devices[current].Current = true
	}
	return devices, nil
}

type logoutDeviceRequest struct {
	SessionID string `json:"session_id"`
}

// Revoke ends the session with the given id. Revoking this client's own
// session needs no special handling: the next authenticated call gets a 401
// and the gateway ends the session.
func (s *DeviceService) Revoke(ctx context.Context, sessionID string) error {
	if err := s.session.RequireAuthenticated(); err != nil {
		return err
	}
	return s.gw.DoJSON(ctx, http.MethodPost, PathLogoutDevice, logoutDeviceRequest{SessionID: sessionID}, nil,
		client.StatusErrors{http.StatusNotFound: client.ErrNotFound})
}
