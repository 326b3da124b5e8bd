package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "오페라의 유령", CleanTitle("[서울] 오페라의 유령"))
	assert.Equal(t, "시카고", CleanTitle("시카고 [앵콜][단독]"))
	assert.Equal(t, "그날들", CleanTitle("그날들"))
	assert.Equal(t, "", CleanTitle("[취소공연]"))
}

func TestCanonicalGenre(t *testing.T) {
	assert.Equal(t, "대학로", CanonicalGenre("연애"))
	assert.Equal(t, "대학로", CanonicalGenre("미스터리"))
	assert.Equal(t, "대학로", CanonicalGenre("가요뮤지컬"))
	assert.Equal(t, "대학로", CanonicalGenre("창작"))
	assert.Equal(t, "지역|창작", CanonicalGenre("부산북구"))
	assert.Equal(t, "라이선스", CanonicalGenre("라이선스"))
}

func TestSplitCast(t *testing.T) {
	assert.Equal(t, []string{"김도현", "박은태", "이해준"}, SplitCast("김도현, 박은태, 이해준"))
	// the trailing "등" marker is stripped
	assert.Equal(t, []string{"김도현", "박은태"}, SplitCast("김도현, 박은태 등"))
	assert.Empty(t, SplitCast(""))
	assert.Equal(t, []string{"솔로"}, SplitCast("솔로"))
}

func TestParseTicketPrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{"free", "전석 무료", 0, true},
		{"all seats flat", "전석 30,000원", 30000, true},
		{"all seats plain", "전석 15000원", 15000, true},
		{"two tiers averaged", "R석 50,000원, S석 30,000원", 40000, true},
		{"three tiers averaged", "VIP석 90,000원 R석 60,000원 S석 30,000원", 60000, true},
		{"unparsable", "현장 문의", 0, false},
		{"empty", "", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseTicketPrice(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLabelEncoderFitEncodeDecode(t *testing.T) {
	enc := NewLabelEncoder()
	enc.Fit("a")
	enc.Fit("b")
	enc.Fit("a") // no-op

	assert.Equal(t, 2, enc.Len())

	idx, ok := enc.Encode("b")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = enc.Encode("missing")
	assert.False(t, ok)

	assert.Equal(t, "a", enc.Decode(0))
	assert.Equal(t, "", enc.Decode(5))
}

func TestLabelEncoderRebuildsIndexAfterDeserialize(t *testing.T) {
	// a decoder loaded from JSON only carries Classes
	enc := &LabelEncoder{Classes: []string{"x", "y", "z"}}

	idx, ok := enc.Encode("z")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	enc2 := &LabelEncoder{Classes: []string{"x"}}
	enc2.Fit("w")
	idx, ok = enc2.Encode("w")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}
