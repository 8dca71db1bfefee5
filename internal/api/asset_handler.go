package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"eventFlow/internal/database"
)

// assetStorage 抽象出上传所需的对象存储操作，方便测试替换。
type assetStorage interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// assetStore 负责资产元数据的持久化。
type assetStore interface {
	Create(ctx context.Context, asset database.Asset) error
	CountByUser(ctx context.Context, userID uint) (int64, error)
	ListByUser(ctx context.Context, userID uint, limit int) ([]database.Asset, error)
	DeleteByKey(ctx context.Context, userID uint, objectKey string) (int64, error)
}

type gormAssetStore struct {
	db *gorm.DB
}

func newGormAssetStore(db *gorm.DB) *gormAssetStore {
	return &gormAssetStore{db: db}
}

func (s *gormAssetStore) Create(ctx context.Context, asset database.Asset) error {
	return s.db.WithContext(ctx).Create(&asset).Error
}

func (s *gormAssetStore) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&database.Asset{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (s *gormAssetStore) ListByUser(ctx context.Context, userID uint, limit int) ([]database.Asset, error) {
	var assets []database.Asset
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&assets).Error
	return assets, err
}

func (s *gormAssetStore) DeleteByKey(ctx context.Context, userID uint, objectKey string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND object_key = ?", userID, objectKey).
		Delete(&database.Asset{})
	return result.RowsAffected, result.Error
}

// AssetHandler 负责处理图片资产的上传、列表与访问。
type AssetHandler struct {
	store            assetStore
	Storage          assetStorage
	Logger           *slog.Logger
	ClamdAddr        string
	MaxBytes         int64
	MIMEWhitelist    []string
	RedisClient      redisRateCounter
	maxAssetsPerUser int
	maxUploadsPerDay int
}

// NewAssetHandler 返回 AssetHandler 实例。
func NewAssetHandler(
	db *gorm.DB,
	storageClient assetStorage,
	logger *slog.Logger,
	redisClient redisRateCounter,
	clamdAddr string,
	maxUploadSizeMB int,
	maxAssetsPerUser int,
	maxUploadsPerDay int,
) *AssetHandler {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 5
	}
	return &AssetHandler{
		store:            newGormAssetStore(db),
		Storage:          storageClient,
		Logger:           logger,
		ClamdAddr:        clamdAddr,
		MaxBytes:         int64(maxUploadSizeMB) << 20,
		MIMEWhitelist:    []string{"image/png", "image/jpeg", "image/webp"},
		RedisClient:      redisClient,
		maxAssetsPerUser: maxAssetsPerUser,
		maxUploadsPerDay: maxUploadsPerDay,
	}
}

// UploadAsset 处理受保护的图片上传，并在上传前扫描病毒。
func (h *AssetHandler) UploadAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()

	if h.maxAssetsPerUser > 0 {
		count, err := h.store.CountByUser(ctx, userID)
		if err != nil {
			h.logger().Error("count assets", slog.Any("error", err))
			Internal(c, "failed to check asset quota")
			return
		}
		if count >= int64(h.maxAssetsPerUser) {
			Forbidden(c, "asset quota exceeded")
			return
		}
	}

	// 每日上传频控：Redis 故障时放行，不阻断业务。
	if h.maxUploadsPerDay > 0 && h.RedisClient != nil {
		rateKey := fmt.Sprintf("rate:asset-upload:%d:%s", userID, time.Now().UTC().Format("20060102"))
		if count, err := incrWithTTL(ctx, h.RedisClient, rateKey, 24*time.Hour); err == nil && count > int64(h.maxUploadsPerDay) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "daily upload limit exceeded"})
			return
		}
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if h.MaxBytes > 0 && file.Size > h.MaxBytes {
		BadRequest(c, "file too large")
		return
	}

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(fileReader, head)
	fileReader.Close()
	contentType := http.DetectContentType(head[:n])
	if !h.mimeAllowed(contentType) {
		BadRequest(c, "unsupported file type")
		return
	}

	if strings.TrimSpace(h.ClamdAddr) != "" {
		if err := h.scanFile(file); err != nil {
			if strings.Contains(err.Error(), "malicious") {
				BadRequest(c, "malicious file detected")
				return
			}
			h.logger().Error("scan file", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return
		}
	}

	fileReader, err = file.Open()
	if err != nil {
		Internal(c, "failed to reopen file")
		return
	}
	defer fileReader.Close()

	objectKey := fmt.Sprintf("user-assets/%d/%s%s", userID, uuid.NewString(), extensionForMIME(contentType))
	if _, err := h.Storage.UploadFile(ctx, objectKey, fileReader, file.Size, contentType); err != nil {
		h.logger().Error("upload file", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}

	if err := h.store.Create(ctx, database.Asset{UserID: userID, ObjectKey: objectKey}); err != nil {
		h.logger().Error("record asset", slog.Any("error", err))
		_ = h.Storage.DeleteObject(ctx, objectKey)
		Internal(c, "failed to record asset")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"objectKey": objectKey})
}

// ListAssets 列出用户上传的资产及其临时访问地址。
func (h *AssetHandler) ListAssets(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	limit := intQuery(c, "limit", 60, 200)

	assets, err := h.store.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger().Error("list assets", slog.Any("error", err))
		Internal(c, "failed to list assets")
		return
	}

	items := make([]gin.H, 0, len(assets))
	for _, asset := range assets {
		url, err := h.Storage.GeneratePresignedURL(c.Request.Context(), asset.ObjectKey, 10*time.Minute)
		if err != nil {
			h.logger().Error("generate asset url", slog.String("objectKey", asset.ObjectKey), slog.Any("error", err))
			continue
		}
		items = append(items, gin.H{
			"objectKey":  asset.ObjectKey,
			"previewUrl": url,
			"createdAt":  asset.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetAssetURL 返回资产的临时预签名 URL。
func (h *AssetHandler) GetAssetURL(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	if objectKey == "" {
		BadRequest(c, "missing key")
		return
	}

	expectedPrefix := fmt.Sprintf("user-assets/%d/", userID)
	if !strings.HasPrefix(objectKey, expectedPrefix) {
		Forbidden(c, "access denied")
		return
	}

	signedURL, err := h.Storage.GeneratePresignedURL(c.Request.Context(), objectKey, 15*time.Minute)
	if err != nil {
		h.logger().Error("generate presigned url", slog.Any("error", err))
		Internal(c, "failed to generate url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}

// DeleteAsset 删除用户自己的资产。
func (h *AssetHandler) DeleteAsset(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	objectKey := c.Query("key")
	expectedPrefix := fmt.Sprintf("user-assets/%d/", userID)
	if objectKey == "" || !strings.HasPrefix(objectKey, expectedPrefix) {
		Forbidden(c, "access denied")
		return
	}

	affected, err := h.store.DeleteByKey(c.Request.Context(), userID, objectKey)
	if err != nil {
		h.logger().Error("delete asset record", slog.Any("error", err))
		Internal(c, "failed to delete asset")
		return
	}
	if affected == 0 {
		NotFound(c, "asset not found")
		return
	}

	if err := h.Storage.DeleteObject(c.Request.Context(), objectKey); err != nil {
		h.logger().Error("delete asset object", slog.String("objectKey", objectKey), slog.Any("error", err))
	}

	c.Status(http.StatusNoContent)
}

func (h *AssetHandler) scanFile(file *multipart.FileHeader) error {
	clamdClient := clamd.NewClamd(h.ClamdAddr)

	fileReader, err := file.Open()
	if err != nil {
		return fmt.Errorf("open file for scan: %w", err)
	}

	abortChan := make(chan bool)
	scanChan, err := clamdClient.ScanStream(fileReader, abortChan)
	fileReader.Close()
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	defer close(abortChan)

	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("malicious file detected: %s", result.Status)
		}
	}
	return nil
}

func (h *AssetHandler) mimeAllowed(contentType string) bool {
	for _, allowed := range h.MIMEWhitelist {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func (h *AssetHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func extensionForMIME(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
