// Package recommend 提供基于因子分解机的音乐剧推荐能力
package recommend

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	bracketPattern     = regexp.MustCompile(`\[.*?\]`)
	allSeatPricePat    = regexp.MustCompile(`(\d+),?\d*원`)
	perSeatPricePat    = regexp.MustCompile(`석\s*(\d+),?\d*원`)
	priceDigitCleanPat = regexp.MustCompile(`[^\d]`)
)

// CanonicalGenre 归一化目录中的长尾流派标签
func CanonicalGenre(genre string) string {
	switch genre {
	case "연애", "미스터리", "가요뮤지컬", "창작":
		return "대학로"
	case "부산북구":
		return "지역|창작"
	}
	return genre
}

// CleanTitle 去除标题中的方括号标注并裁剪空白，用于跨版本去重
func CleanTitle(title string) string {
	return strings.TrimSpace(bracketPattern.ReplaceAllString(title, ""))
}

// SplitCast 将逗号分隔的演员串拆分为规范化的单人列表
func SplitCast(cast string) []string {
	parts := strings.Split(cast, ", ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, "등", ""))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ParseTicketPrice 从票价描述中提取数值价格
// "전석 무료" 记 0，"전석 N원" 取 N，多档座位取平均，无法识别时 ok 为 false
func ParseTicketPrice(ticketPrice string) (float64, bool) {
	if strings.Contains(ticketPrice, "전석 무료") {
		return 0, true
	}
	if strings.Contains(ticketPrice, "전석") {
		m := allSeatPricePat.FindStringSubmatch(ticketPrice)
		if m != nil {
			v, err := strconv.Atoi(priceDigitCleanPat.ReplaceAllString(m[0], ""))
			if err == nil {
				return float64(v), true
			}
		}
		return 0, false
	}
	matches := perSeatPricePat.FindAllStringSubmatch(ticketPrice, -1)
	if len(matches) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, m := range matches {
		v, err := strconv.Atoi(priceDigitCleanPat.ReplaceAllString(m[0], ""))
		if err != nil {
			return 0, false
		}
		sum += float64(v)
	}
	return sum / float64(len(matches)), true
}
