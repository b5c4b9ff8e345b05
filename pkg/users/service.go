// Package users binds the /users endpoints and the user picker.
package users

import (
	"context"
	"fmt"
	"net/url"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/client"
)

// AvatarField is the multipart part carrying a profile picture.
const AvatarField = "avatar"

// Service binds the /users endpoints.
type Service struct {
	svc *client.Service
}

// NewService creates the service on top of c.
func NewService(c *client.Client) *Service {
	return &Service{svc: c.Service("/users")}
}

// Me returns the profile of the logged-in user.
func (s *Service) Me(ctx context.Context) (*api.User, error) {
	var resp api.Response[api.User]
	if err := s.svc.Get(ctx, "/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateMe patches the logged-in user's profile.
func (s *Service) UpdateMe(ctx context.Context, req api.UserUpdateRequest) (*api.User, error) {
	var resp api.Response[api.User]
	if err := s.svc.Patch(ctx, "/me", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateMeWithAvatar patches the profile as multipart, uploading the file
// at avatarPath as the new picture.
func (s *Service) UpdateMeWithAvatar(ctx context.Context, req api.UserUpdateRequest, avatarPath string) (*api.User, error) {
	form := client.NewForm(formFields(req))
	if err := form.AddFilePath(AvatarField, avatarPath); err != nil {
		return nil, err
	}
	var resp api.Response[api.User]
	if err := s.svc.PatchMultipart(ctx, "/me", form, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (s *Service) Get(ctx context.Context, id string) (*api.User, error) {
	var resp api.Response[api.User]
	if err := s.svc.Get(ctx, "/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// List returns one page of users matching filter.
func (s *Service) List(ctx context.Context, filter api.UserFilter) (*api.PaginatedResponse[api.UserListItem], error) {
	var resp api.PaginatedResponse[api.UserListItem]
	if err := s.svc.Get(ctx, "", filter.Values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) Create(ctx context.Context, req api.UserCreateRequest) (*api.User, error) {
	var resp api.Response[api.User]
	if err := s.svc.Post(ctx, "", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (s *Service) Update(ctx context.Context, id string, req api.UserUpdateRequest) (*api.User, error) {
	var resp api.Response[api.User]
	if err := s.svc.Patch(ctx, "/"+url.PathEscape(id), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("user id is required")
	}
	return s.svc.Delete(ctx, "/"+url.PathEscape(id), nil)
}

// formFields flattens the set fields of req for a multipart body.
func formFields(req api.UserUpdateRequest) map[string]string {
	f := map[string]string{}
	set := func(key string, v *string) {
		if v != nil {
			f[key] = *v
		}
	}
	set("name", req.Name)
	set("email", req.Email)
	set("phone", req.Phone)
	set("alias", req.Alias)
	set("gender", req.Gender)
	set("date_of_birth", req.DateOfBirth)
	set("address", req.Address)
	set("bio", req.Bio)
	return f
}
