// Package applications binds the /applications endpoints and the
// application picker.
package applications

import (
	"context"
	"fmt"
	"net/url"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/client"
)

// Multipart parts carrying application artwork.
const (
	IconField = "icon"
	ImgField  = "img"
)

// Images names local files to upload with a create or update. Empty paths
// are skipped.
type Images struct {
	IconPath string
	ImgPath  string
}

func (i Images) attach(form *client.Form) error {
	if i.IconPath != "" {
		if err := form.AddFilePath(IconField, i.IconPath); err != nil {
			return err
		}
	}
	if i.ImgPath != "" {
		if err := form.AddFilePath(ImgField, i.ImgPath); err != nil {
			return err
		}
	}
	return nil
}

// Service binds the /applications endpoints.
type Service struct {
	svc *client.Service
}

// NewService creates the service on top of c.
func NewService(c *client.Client) *Service {
	return &Service{svc: c.Service("/applications")}
}

// MyApps lists the applications the logged-in user may open.
func (s *Service) MyApps(ctx context.Context) ([]api.AllowedAppDetail, error) {
	var resp api.Response[[]api.AllowedAppDetail]
	if err := s.svc.Get(ctx, "/my-apps", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (s *Service) List(ctx context.Context, filter api.ApplicationFilter) (*api.PaginatedResponse[api.ApplicationListItem], error) {
	var resp api.PaginatedResponse[api.ApplicationListItem]
	if err := s.svc.Get(ctx, "", filter.Values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*api.Application, error) {
	var resp api.Response[api.Application]
	if err := s.svc.Get(ctx, "/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Create registers an application, uploading the given images.
func (s *Service) Create(ctx context.Context, req api.ApplicationCreateRequest, images Images) (*api.Application, error) {
	form := client.NewForm(req.Fields())
	if err := images.attach(form); err != nil {
		return nil, err
	}
	var resp api.Response[api.Application]
	if err := s.svc.PostMultipart(ctx, "", form, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// Update patches an application; only set fields and given images change.
func (s *Service) Update(ctx context.Context, id string, req api.ApplicationUpdateRequest, images Images) (*api.Application, error) {
	form := client.NewForm(req.Fields())
	if err := images.attach(form); err != nil {
		return nil, err
	}
	var resp api.Response[api.Application]
	if err := s.svc.PatchMultipart(ctx, "/"+url.PathEscape(id), form, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("application id is required")
	}
	return s.svc.Delete(ctx, "/"+url.PathEscape(id), nil)
}

// UserApps lists the applications assigned to a user.
func (s *Service) UserApps(ctx context.Context, userID string) ([]api.AllowedAppDetail, error) {
	var resp api.Response[[]api.AllowedAppDetail]
	if err := s.svc.Get(ctx, "/user/"+url.PathEscape(userID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// AssignToUser grants a user access to applications and returns the
// resulting assignment list.
func (s *Service) AssignToUser(ctx context.Context, userID string, appIDs ...string) ([]api.AllowedAppDetail, error) {
	var resp api.Response[[]api.AllowedAppDetail]
	body := api.UserApplicationAssignRequest{ApplicationIDs: appIDs}
	if err := s.svc.Post(ctx, "/user/"+url.PathEscape(userID)+"/assign", body, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// RemoveFromUser revokes one application from a user.
func (s *Service) RemoveFromUser(ctx context.Context, userID, appID string) error {
	return s.svc.Delete(ctx, "/user/"+url.PathEscape(userID)+"/"+url.PathEscape(appID), nil)
}
