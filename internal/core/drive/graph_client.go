package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/markdave123-py/drivesync/internal/config"
	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/models"
)

const (
	graphScope = "https://graph.microsoft.com/.default"
	deltaQuery = "$select=id,name,size,webUrl,createdDateTime,lastModifiedDateTime,createdBy,lastModifiedBy,file,parentReference,deleted"

	// maxDownloadBytes caps a single file download.
	maxDownloadBytes = 512 << 20
)

// GraphClient reads a drive through Microsoft Graph: the delta feed and file content.
type GraphClient struct {
	httpClient *http.Client
	baseURL    string
	driveID    string
}

var (
	_ core.ChangeFeed  = (*GraphClient)(nil)
	_ core.ByteFetcher = (*GraphClient)(nil)
)

// NewGraphClient authenticates with the app's client credentials against the tenant.
func NewGraphClient(ctx context.Context, cfg *config.Config) (*GraphClient, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("TENANT_ID, CLIENT_ID and CLIENT_SECRET are required")
	}
	if cfg.DriveID == "" {
		return nil, fmt.Errorf("DRIVE_ID not set")
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     "https://login.microsoftonline.com/" + cfg.TenantID + "/oauth2/v2.0/token",
		Scopes:       []string{graphScope},
	}
	httpClient := cc.Client(ctx)
	httpClient.Timeout = 5 * time.Minute

	return NewGraphClientWithHTTP(httpClient, cfg.GraphBaseURL, cfg.DriveID), nil
}

// NewGraphClientWithHTTP uses httpClient as-is; it must already add credentials.
func NewGraphClientWithHTTP(httpClient *http.Client, baseURL, driveID string) *GraphClient {
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	return &GraphClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		driveID:    driveID,
	}
}

type deltaResponse struct {
	Value     []graphItem `json:"value"`
	NextLink  string      `json:"@odata.nextLink"`
	DeltaLink string      `json:"@odata.deltaLink"`
}

type identitySet struct {
	User *struct {
		DisplayName string `json:"displayName"`
	} `json:"user"`
}

func (s *identitySet) name() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.DisplayName
}

type graphItem struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Size                 int64        `json:"size"`
	WebURL               string       `json:"webUrl"`
	CreatedDateTime      *time.Time   `json:"createdDateTime"`
	LastModifiedDateTime *time.Time   `json:"lastModifiedDateTime"`
	CreatedBy            *identitySet `json:"createdBy"`
	LastModifiedBy       *identitySet `json:"lastModifiedBy"`
	File                 *struct{}    `json:"file"`
	Deleted              *struct{}    `json:"deleted"`
	ParentReference      *struct {
		Path string `json:"path"`
	} `json:"parentReference"`
}

func (g graphItem) toDriveItem() models.DriveItem {
	item := models.DriveItem{
		ID:                   g.ID,
		Name:                 g.Name,
		WebURL:               g.WebURL,
		Size:                 g.Size,
		CreatedDateTime:      g.CreatedDateTime,
		CreatedBy:            g.CreatedBy.name(),
		LastModifiedDateTime: g.LastModifiedDateTime,
		LastModifiedBy:       g.LastModifiedBy.name(),
		IsFile:               g.File != nil,
		Deleted:              g.Deleted != nil,
	}
	if g.ParentReference != nil {
		item.ParentPath = g.ParentReference.Path
	}
	return item
}

// GetChanges fetches one page of the delta feed. An empty cursor starts a full
// enumeration; otherwise the cursor is a nextLink or deltaLink returned earlier.
func (c *GraphClient) GetChanges(ctx context.Context, cursor string) (*models.DeltaPage, error) {
	url := cursor
	switch {
	case url == "":
		url = fmt.Sprintf("%s/drives/%s/root/delta?%s", c.baseURL, c.driveID, deltaQuery)
	case !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://"):
		url = c.baseURL + "/" + strings.TrimLeft(url, "/")
	}

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("delta: %w", err)
	}
	defer body.Close()

	var res deltaResponse
	if err := json.NewDecoder(body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode delta page: %w", err)
	}

	page := &models.DeltaPage{
		Items:       make([]models.DriveItem, 0, len(res.Value)),
		NextCursor:  res.NextLink,
		DeltaCursor: res.DeltaLink,
	}
	for _, it := range res.Value {
		page.Items = append(page.Items, it.toDriveItem())
	}
	return page, nil
}

// Download returns the content of a drive item.
func (c *GraphClient) Download(ctx context.Context, itemID string) ([]byte, error) {
	url := fmt.Sprintf("%s/drives/%s/items/%s/content", c.baseURL, c.driveID, itemID)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("item %s exceeds %d bytes", itemID, maxDownloadBytes)
	}
	return data, nil
}

func (c *GraphClient) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("graph %s: %s: %s", req.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp.Body, nil
}
