package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// DefaultJPEGQuality は JPEG で書き出すときの既定品質です。
const DefaultJPEGQuality = 90

// Export は生成画像を保存用の形式に変換し、ファイル拡張子とともに返します。
// PNG と元形式と同じ指定は再エンコードせずそのまま返します。
func Export(img domain.Image, format domain.ImageFormat, quality int) ([]byte, string, error) {
	if len(img.Data) == 0 {
		return nil, "", fmt.Errorf("%w: image is empty", domain.ErrInvalidRequest)
	}
	src, _ := domain.ParseImageFormat(img.MIMEType)

	switch format {
	case "":
		if src == "" {
			src = domain.CanonicalFormat
		}
		return img.Data, extension(src), nil
	case src:
		return img.Data, extension(src), nil
	case domain.FormatPNG:
		decoded, err := decode(img.Data)
		if err != nil {
			return nil, "", err
		}
		out, err := EncodePNG(decoded)
		if err != nil {
			return nil, "", err
		}
		return out, extension(domain.FormatPNG), nil
	case domain.FormatJPEG:
		out, err := CompressToJPEG(img.Data, quality)
		if err != nil {
			return nil, "", err
		}
		return out, extension(domain.FormatJPEG), nil
	default:
		return nil, "", fmt.Errorf("%w: cannot export as %q", domain.ErrUnsupportedFormat, format)
	}
}

// CompressToJPEG は画像データを JPEG に変換します。quality が範囲外なら DefaultJPEGQuality を使います。
// 透過部分は JPEG の仕様上、黒で塗られます。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedFormat, err)
	}
	return img, nil
}

func extension(f domain.ImageFormat) string {
	if f == domain.FormatJPEG {
		return ".jpg"
	}
	return "." + string(f)
}
