package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DirectoryClient resolves device employee ids against the host
// application's user directory API. It is the default EmployeeResolver when
// DIRECTORY_ENABLED is set; hosts with an in-process user store provide
// their own implementation instead.
type DirectoryClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

type directoryResponse struct {
	Found bool         `json:"found"`
	User  ResolvedUser `json:"user"`
}

func NewDirectoryClient(baseURL, apiKey string, logger *zap.Logger) *DirectoryClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return &DirectoryClient{httpClient: client, logger: logger}
}

// ResolveByField asks the directory for a user whose field matches value.
// A 404 or found=false response resolves to nil without error.
func (c *DirectoryClient) ResolveByField(ctx context.Context, field, value string) (*ResolvedUser, error) {
	var body directoryResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("field", field).
		SetQueryParam("value", value).
		SetResult(&body).
		Get("/users/lookup")
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("directory lookup: status %d", resp.StatusCode())
	}
	if !body.Found {
		return nil, nil
	}

	c.logger.Debug("directory resolved employee",
		zap.String("field", field),
		zap.String("value", value),
		zap.Int64("user_id", body.User.ID),
	)
	user := body.User
	return &user, nil
}
