package service

import (
	"math/rand"
	"strings"

	"github.com/coupon-next/internal/constants"
)

// CodeOptions 随机码生成配置
type CodeOptions struct {
	Length           int
	Chars            string
	Segmented        bool
	SegmentLength    int
	SegmentSeparator string
}

// normalize 填充缺省值，保证生成参数始终可用。
func (o CodeOptions) normalize() CodeOptions {
	if o.Length <= 0 {
		o.Length = constants.DefaultCodeLength
	}
	if o.Chars == "" {
		o.Chars = constants.DefaultCodeChars
	}
	if o.SegmentLength <= 0 {
		o.SegmentLength = constants.DefaultSegmentLength
	}
	if o.SegmentSeparator == "" {
		o.SegmentSeparator = constants.DefaultSegmentSeparator
	}
	return o
}

// GenerateCode 生成一个随机优惠码。
//
// rng 为空时使用全局随机源；分段模式下先生成 Length 个字符，
// 再按 SegmentLength 切段并用 SegmentSeparator 连接。
func GenerateCode(opts CodeOptions, rng *rand.Rand) string {
	opts = opts.normalize()
	chars := []rune(opts.Chars)

	runes := make([]rune, opts.Length)
	for i := range runes {
		if rng != nil {
			runes[i] = chars[rng.Intn(len(chars))]
		} else {
			runes[i] = chars[rand.Intn(len(chars))]
		}
	}
	code := string(runes)

	if !opts.Segmented {
		return code
	}
	segments := make([]string, 0, (opts.Length+opts.SegmentLength-1)/opts.SegmentLength)
	for start := 0; start < len(runes); start += opts.SegmentLength {
		end := start + opts.SegmentLength
		if end > len(runes) {
			end = len(runes)
		}
		segments = append(segments, string(runes[start:end]))
	}
	return strings.Join(segments, opts.SegmentSeparator)
}
