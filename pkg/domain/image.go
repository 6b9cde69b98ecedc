package domain

import "strings"

// ImageFormat は画像エンコーディングを表すタグです。
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
	FormatGIF  ImageFormat = "gif"
	FormatWebP ImageFormat = "webp"
	FormatBMP  ImageFormat = "bmp"
	FormatTIFF ImageFormat = "tiff"

	// CanonicalFormat はパイプラインに入るすべての画像が変換される形式です。
	CanonicalFormat = FormatPNG
)

// MIMEType は形式に対応する MIME タイプを返します。
func (f ImageFormat) MIMEType() string {
	if f == "" {
		return ""
	}
	return "image/" + string(f)
}

// ParseImageFormat は MIME タイプ ("image/webp") や拡張子風の名前 ("jpg") を ImageFormat に変換します。
// 空文字は「未申告」を意味し、ok=true で空の形式を返します。
func ParseImageFormat(s string) (ImageFormat, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	v = strings.TrimPrefix(v, "image/")
	v = strings.TrimPrefix(v, ".")
	switch v {
	case "":
		return "", true
	case "png":
		return FormatPNG, true
	case "jpeg", "jpg", "pjpeg":
		return FormatJPEG, true
	case "gif":
		return FormatGIF, true
	case "webp":
		return FormatWebP, true
	case "bmp", "x-ms-bmp":
		return FormatBMP, true
	case "tiff", "tif":
		return FormatTIFF, true
	default:
		return ImageFormat(v), false
	}
}

// Image は生成・編集された画像データとその MIME タイプです。
type Image struct {
	Data     []byte
	MIMEType string
}

// NormalizedImage は正規化済みの入力画像です。
// Format は入力形式に関わらず常に CanonicalFormat になります。
type NormalizedImage struct {
	Format       ImageFormat
	Data         []byte
	SourceFormat ImageFormat // 正規化前の形式（ログ・表示用）
}

// IsCanonical は画像が正規形式でエンコードされているかを返します。
func (n NormalizedImage) IsCanonical() bool {
	return n.Format == CanonicalFormat && len(n.Data) > 0
}
