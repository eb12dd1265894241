package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/MarcoPoloResearchLab/yearsync/internal/syncdoc"
)

const (
	// DefaultDriveBaseURL is the Google APIs host.
	DefaultDriveBaseURL = "https://www.googleapis.com"

	driveAppDataFolder = "appDataFolder"
	jsonContentType    = "application/json; charset=UTF-8"
	maxDocumentBytes   = 4 << 20
)

var errMissingTokenSource = errors.New("remote: token source or http client is required")

// DriveConfig configures the Google Drive appDataFolder client.
type DriveConfig struct {
	// TokenSource supplies the user's access token. Ignored when HTTPClient is set.
	TokenSource  oauth2.TokenSource
	HTTPClient   *http.Client
	BaseURL      string
	DocumentName string
	Retry        RetryConfig
	Logger       *zap.Logger
}

// DriveClient keeps the document in the Drive application data folder.
type DriveClient struct {
	httpClient   *http.Client
	baseURL      string
	documentName string
	retryer      *Retryer
	logger       *zap.Logger
}

type driveFile struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type driveFileList struct {
	Files []driveFile `json:"files"`
}

type driveFileMetadata struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents"`
}

type driveErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewDriveClient builds a Drive client whose requests carry the grant's bearer token.
func NewDriveClient(cfg DriveConfig) (*DriveClient, error) {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.TokenSource == nil {
			return nil, errMissingTokenSource
		}
		httpClient = oauth2.NewClient(context.Background(), cfg.TokenSource)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultDriveBaseURL
	}
	documentName := strings.TrimSpace(cfg.DocumentName)
	if documentName == "" {
		documentName = DefaultDocumentName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error) {
			logger.Warn("drive request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}
	}
	return &DriveClient{
		httpClient:   httpClient,
		baseURL:      baseURL,
		documentName: documentName,
		retryer:      NewRetryer(retry),
		logger:       logger,
	}, nil
}

// Find lists the app data folder for a non-trashed file with the document name.
func (c *DriveClient) Find(ctx context.Context) (string, bool, error) {
	query := url.Values{}
	query.Set("spaces", driveAppDataFolder)
	query.Set("q", fmt.Sprintf("name = '%s' and trashed = false", escapeDriveQuery(c.documentName)))
	query.Set("fields", "files(id,name)")
	query.Set("pageSize", "1")
	endpoint := c.baseURL + "/drive/v3/files?" + query.Encode()

	listing, err := doWithResult(ctx, c.retryer, func() (driveFileList, error) {
		var listing driveFileList
		err := c.doJSON(ctx, http.MethodGet, endpoint, nil, "", &listing)
		return listing, err
	})
	if err != nil {
		return "", false, err
	}
	if len(listing.Files) == 0 {
		return "", false, nil
	}
	return listing.Files[0].ID, true, nil
}

// Read downloads the file body and decodes it.
func (c *DriveClient) Read(ctx context.Context, fileID string) (syncdoc.Document, error) {
	endpoint := c.baseURL + "/drive/v3/files/" + url.PathEscape(fileID) + "?alt=media"
	payload, err := doWithResult(ctx, c.retryer, func() ([]byte, error) {
		return c.doRaw(ctx, http.MethodGet, endpoint, nil, "")
	})
	if err != nil {
		return nil, err
	}
	return decodeDocument(payload)
}

// Write creates the file with a multipart upload or replaces its media.
func (c *DriveClient) Write(ctx context.Context, fileID string, doc syncdoc.DocumentV2) (string, error) {
	payload, err := syncdoc.Encode(doc)
	if err != nil {
		return "", invalidDocument(err)
	}
	if fileID == "" {
		return c.create(ctx, payload)
	}
	endpoint := c.baseURL + "/upload/drive/v3/files/" + url.PathEscape(fileID) + "?uploadType=media&fields=id"
	updated, err := doWithResult(ctx, c.retryer, func() (driveFile, error) {
		var file driveFile
		err := c.doJSON(ctx, http.MethodPatch, endpoint, payload, jsonContentType, &file)
		return file, err
	})
	if err != nil {
		return "", err
	}
	if updated.ID == "" {
		return fileID, nil
	}
	return updated.ID, nil
}

// Delete removes the file. A 404 means it is already gone.
func (c *DriveClient) Delete(ctx context.Context, fileID string) error {
	endpoint := c.baseURL + "/drive/v3/files/" + url.PathEscape(fileID)
	err := c.retryer.Do(ctx, func() error {
		_, err := c.doRaw(ctx, http.MethodDelete, endpoint, nil, "")
		return err
	})
	if StatusOf(err) == http.StatusNotFound {
		c.logger.Debug("drive document already absent", zap.String("file_id", fileID))
		return nil
	}
	return err
}

func (c *DriveClient) create(ctx context.Context, payload []byte) (string, error) {
	metadata, err := json.Marshal(driveFileMetadata{Name: c.documentName, Parents: []string{driveAppDataFolder}})
	if err != nil {
		return "", invalidDocument(err)
	}
	body, contentType, err := multipartRelated(metadata, payload)
	if err != nil {
		return "", invalidDocument(err)
	}
	endpoint := c.baseURL + "/upload/drive/v3/files?uploadType=multipart&fields=id"
	created, err := doWithResult(ctx, c.retryer, func() (driveFile, error) {
		var file driveFile
		err := c.doJSON(ctx, http.MethodPost, endpoint, body, contentType, &file)
		return file, err
	})
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", NewError(http.StatusBadGateway, "drive create returned no file id")
	}
	return created.ID, nil
}

func (c *DriveClient) doJSON(ctx context.Context, method, endpoint string, body []byte, contentType string, out any) error {
	payload, err := c.doRaw(ctx, method, endpoint, body, contentType)
	if err != nil {
		return err
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return NewError(http.StatusBadGateway, fmt.Sprintf("malformed drive response: %v", err))
	}
	return nil
}

func (c *DriveClient) doRaw(ctx context.Context, method, endpoint string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Code: http.StatusBadRequest, Message: err.Error(), err: err}
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, classify(err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxDocumentBytes))
	if err != nil {
		return nil, classify(err)
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return payload, nil
	}
	return nil, NewError(response.StatusCode, driveErrorMessage(response.StatusCode, payload))
}

func driveErrorMessage(status int, payload []byte) string {
	var body driveErrorBody
	if err := json.Unmarshal(payload, &body); err == nil && strings.TrimSpace(body.Error.Message) != "" {
		return body.Error.Message
	}
	if text := strings.TrimSpace(string(payload)); text != "" && len(text) < 512 {
		return text
	}
	return http.StatusText(status)
}

func multipartRelated(metadata, media []byte) ([]byte, string, error) {
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	for _, part := range [][]byte{metadata, media} {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", jsonContentType)
		partWriter, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := partWriter.Write(part); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buffer.Bytes(), "multipart/related; boundary=" + writer.Boundary(), nil
}

func escapeDriveQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}
