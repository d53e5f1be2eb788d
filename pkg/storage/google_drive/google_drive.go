// Package google_drive stores backups in a Google Drive folder using an OAuth2 refresh token.
package google_drive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haierkeys/fast-db-backup-service/pkg/storage/remote"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

type Config struct {
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	FolderID        string
	UploadRateLimit int64
}

type GoogleDrive struct {
	Service *drive.Service
	Config  *Config
	logger  *zap.Logger
}

// OAuthConfig returns the OAuth2 client configuration for the Drive file scope.
// OAuthConfig 返回 Drive 授权配置，可用于生成授权链接与交换 refresh token
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
		RedirectURL:  redirectURL,
	}
}

// NewClient 使用 refresh token 创建 Drive 服务
func NewClient(ctx context.Context, conf *Config, logger *zap.Logger) (*GoogleDrive, error) {
	if conf.ClientID == "" || conf.ClientSecret == "" || conf.RefreshToken == "" {
		return nil, errors.New("google_drive: client id, client secret and refresh token are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ts := OAuthConfig(conf.ClientID, conf.ClientSecret, "").TokenSource(ctx, &oauth2.Token{RefreshToken: conf.RefreshToken})
	srv, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, errors.Wrap(err, "google_drive")
	}
	return &GoogleDrive{Service: srv, Config: conf, logger: logger}, nil
}

// TestConnection refreshes the access token and checks the folder when one is set.
func (g *GoogleDrive) TestConnection(ctx context.Context) error {
	if _, err := g.Service.About.Get().Fields("user").Context(ctx).Do(); err != nil {
		return errors.Wrap(err, "google_drive")
	}
	if g.Config.FolderID == "" {
		return nil
	}
	f, err := g.Service.Files.Get(g.Config.FolderID).Fields("id, mimeType").Context(ctx).Do()
	if err != nil {
		return errors.Wrap(err, "google_drive folder")
	}
	if f.MimeType != folderMimeType {
		return errors.Errorf("google_drive: %s is not a folder", g.Config.FolderID)
	}
	return nil
}

// Upload 上传文件，返回的 Key 为 Drive 文件 ID
func (g *GoogleDrive) Upload(ctx context.Context, localPath, remoteName string) (*remote.UploadResult, error) {
	start := time.Now()
	src, err := remote.Open(localPath, g.Config.UploadRateLimit)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	meta := &drive.File{Name: remoteName, MimeType: "application/octet-stream"}
	if g.Config.FolderID != "" {
		meta.Parents = []string{g.Config.FolderID}
	}
	f, err := g.Service.Files.Create(meta).
		Media(src, googleapi.ContentType("application/octet-stream")).
		Fields("id, name, size").
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "google_drive")
	}

	g.logger.Info("google drive upload done", zap.String("fileId", f.Id), zap.String("name", f.Name), zap.Int64("size", src.Size))
	return &remote.UploadResult{Key: f.Id, FileSize: src.Size, Duration: remote.Seconds(start)}, nil
}

func (g *GoogleDrive) Download(ctx context.Context, ref, localPath string) (*remote.DownloadResult, error) {
	start := time.Now()
	resp, err := g.Service.Files.Get(ref).Context(ctx).Download()
	if err != nil {
		return nil, errors.Wrap(err, "google_drive")
	}
	defer resp.Body.Close()

	n, err := remote.WriteFile(localPath, resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "google_drive")
	}
	return &remote.DownloadResult{FilePath: localPath, FileSize: n, Duration: remote.Seconds(start)}, nil
}

func (g *GoogleDrive) Delete(ctx context.Context, ref string) error {
	return errors.Wrap(g.Service.Files.Delete(ref).Context(ctx).Do(), "google_drive")
}

// List 列出目标文件夹中未删除的文件
func (g *GoogleDrive) List(ctx context.Context) ([]remote.Object, error) {
	q := []string{"trashed = false", fmt.Sprintf("mimeType != '%s'", folderMimeType)}
	if g.Config.FolderID != "" {
		q = append(q, fmt.Sprintf("'%s' in parents", strings.ReplaceAll(g.Config.FolderID, "'", `\'`)))
	}

	var objects []remote.Object
	err := g.Service.Files.List().
		Q(strings.Join(q, " and ")).
		Fields("nextPageToken, files(id, name, size, createdTime)").
		PageSize(100).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				created, _ := time.Parse(time.RFC3339, f.CreatedTime)
				objects = append(objects, remote.Object{Key: f.Id, Name: f.Name, Size: f.Size, LastModified: created})
			}
			return nil
		})
	if err != nil {
		return nil, errors.Wrap(err, "google_drive")
	}
	return objects, nil
}
