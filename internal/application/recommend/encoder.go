package recommend

// LabelEncoder 将类别值映射为连续下标，按首次出现顺序分配
type LabelEncoder struct {
	Classes []string       `json:"classes"`
	index   map[string]int `json:"-"`
}

// NewLabelEncoder 创建空编码器
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{index: make(map[string]int)}
}

// Fit 注册一个类别值，已存在时为空操作
func (e *LabelEncoder) Fit(value string) {
	if e.index == nil {
		e.rebuild()
	}
	if _, ok := e.index[value]; ok {
		return
	}
	e.index[value] = len(e.Classes)
	e.Classes = append(e.Classes, value)
}

// Encode 返回类别值的下标，未注册时 ok 为 false
func (e *LabelEncoder) Encode(value string) (int, bool) {
	if e.index == nil {
		e.rebuild()
	}
	idx, ok := e.index[value]
	return idx, ok
}

// Decode 返回下标对应的类别值
func (e *LabelEncoder) Decode(idx int) string {
	if idx < 0 || idx >= len(e.Classes) {
		return ""
	}
	return e.Classes[idx]
}

// Len 返回词表大小
func (e *LabelEncoder) Len() int {
	return len(e.Classes)
}

// rebuild 反序列化后从 Classes 重建索引
func (e *LabelEncoder) rebuild() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}
