package qr

import (
	"encoding/base64"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// CheckInURL 拼出签到二维码指向的地址。
func CheckInURL(baseURL, token string) string {
	return fmt.Sprintf("%s/checkin/%s", baseURL, token)
}

// PNG 生成指定内容的二维码图片。
func PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr content is empty")
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// DataURI 生成可直接嵌入页面或邮件的二维码 data URI。
func DataURI(content string, size int) (string, error) {
	png, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
