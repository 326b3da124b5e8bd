package recommend

import (
	"math"
	"math/rand"
)

const (
	hidden1     = 128
	hidden2     = 64
	hidden3     = 32
	dropoutRate = 0.3
	l2Reg       = 1e-4

	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// tensor 行主序参数矩阵，附带 Adam 动量状态
type tensor struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`

	m []float64
	v []float64
}

func newTensor(rows, cols int) *tensor {
	return &tensor{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

func (t *tensor) at(i, j int) float64 { return t.Data[i*t.Cols+j] }

func (t *tensor) row(i int) []float64 { return t.Data[i*t.Cols : (i+1)*t.Cols] }

func (t *tensor) ensureAdam() {
	if t.m == nil {
		t.m = make([]float64, len(t.Data))
		t.v = make([]float64, len(t.Data))
	}
}

// glorotInit 以 Glorot 均匀分布初始化
func (t *tensor) glorotInit(rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(t.Rows+t.Cols))
	for i := range t.Data {
		t.Data[i] = (rng.Float64()*2 - 1) * limit
	}
}

// uniformInit 以 [-scale, scale] 均匀分布初始化，用于嵌入表
func (t *tensor) uniformInit(rng *rand.Rand, scale float64) {
	for i := range t.Data {
		t.Data[i] = (rng.Float64()*2 - 1) * scale
	}
}

// Model 三字段因子分解机加全连接塔的二分类模型
//
// 标题、演员、流派各查一条 16 维嵌入，两两内积求和得到 FM 交互项，
// 与展平嵌入拼接后过 128/64/32 的 ReLU 塔，sigmoid 输出出演概率。
type Model struct {
	Dim int `json:"dim"`

	TitleEmb *tensor `json:"title_emb"`
	CastEmb  *tensor `json:"cast_emb"`
	GenreEmb *tensor `json:"genre_emb"`

	W1   *tensor `json:"w1"`
	B1   *tensor `json:"b1"`
	W2   *tensor `json:"w2"`
	B2   *tensor `json:"b2"`
	W3   *tensor `json:"w3"`
	B3   *tensor `json:"b3"`
	WOut *tensor `json:"w_out"`
	BOut *tensor `json:"b_out"`

	step int
}

// NewModel 按词表大小创建并随机初始化模型
func NewModel(titleVocab, castVocab, genreVocab, dim int, rng *rand.Rand) *Model {
	if dim <= 0 {
		dim = 16
	}
	in := 3*dim + 1
	m := &Model{
		Dim:      dim,
		TitleEmb: newTensor(titleVocab, dim),
		CastEmb:  newTensor(castVocab, dim),
		GenreEmb: newTensor(genreVocab, dim),
		W1:       newTensor(in, hidden1),
		B1:       newTensor(1, hidden1),
		W2:       newTensor(hidden1, hidden2),
		B2:       newTensor(1, hidden2),
		W3:       newTensor(hidden2, hidden3),
		B3:       newTensor(1, hidden3),
		WOut:     newTensor(hidden3, 1),
		BOut:     newTensor(1, 1),
	}
	m.TitleEmb.uniformInit(rng, 0.05)
	m.CastEmb.uniformInit(rng, 0.05)
	m.GenreEmb.uniformInit(rng, 0.05)
	m.W1.glorotInit(rng)
	m.W2.glorotInit(rng)
	m.W3.glorotInit(rng)
	m.WOut.glorotInit(rng)
	return m
}

// Predict 返回 (标题, 演员, 流派) 组合的出演概率
func (m *Model) Predict(title, cast, genre int) float64 {
	return m.forward(title, cast, genre, false, nil).p
}

type forwardCache struct {
	title, cast, genre int
	eT, eC, eG         []float64
	fm                 float64
	x                  []float64

	z1, a1, mask1 []float64
	z2, a2, mask2 []float64
	z3, a3        []float64
	p             float64
}

func (m *Model) forward(title, cast, genre int, training bool, rng *rand.Rand) *forwardCache {
	c := &forwardCache{title: title, cast: cast, genre: genre}
	c.eT = m.TitleEmb.row(title)
	c.eC = m.CastEmb.row(cast)
	c.eG = m.GenreEmb.row(genre)

	// FM 两两交互
	for k := 0; k < m.Dim; k++ {
		c.fm += c.eT[k]*c.eC[k] + c.eT[k]*c.eG[k] + c.eC[k]*c.eG[k]
	}

	c.x = make([]float64, 3*m.Dim+1)
	copy(c.x, c.eT)
	copy(c.x[m.Dim:], c.eC)
	copy(c.x[2*m.Dim:], c.eG)
	c.x[3*m.Dim] = c.fm

	c.z1, c.a1 = denseRelu(c.x, m.W1, m.B1)
	c.a1, c.mask1 = dropout(c.a1, training, rng)
	c.z2, c.a2 = denseRelu(c.a1, m.W2, m.B2)
	c.a2, c.mask2 = dropout(c.a2, training, rng)
	c.z3, c.a3 = denseRelu(c.a2, m.W3, m.B3)

	logit := m.BOut.Data[0]
	for j := 0; j < hidden3; j++ {
		logit += c.a3[j] * m.WOut.Data[j]
	}
	c.p = sigmoid(logit)
	return c
}

func denseRelu(x []float64, w, b *tensor) (z, a []float64) {
	z = make([]float64, w.Cols)
	a = make([]float64, w.Cols)
	for j := 0; j < w.Cols; j++ {
		s := b.Data[j]
		for i := 0; i < w.Rows; i++ {
			s += x[i] * w.at(i, j)
		}
		z[j] = s
		if s > 0 {
			a[j] = s
		}
	}
	return z, a
}

// dropout 倒置 dropout，推理时恒等
func dropout(a []float64, training bool, rng *rand.Rand) (out, mask []float64) {
	if !training {
		return a, nil
	}
	keep := 1 - dropoutRate
	out = make([]float64, len(a))
	mask = make([]float64, len(a))
	for i := range a {
		if rng.Float64() < keep {
			mask[i] = 1 / keep
			out[i] = a[i] * mask[i]
		}
	}
	return out, mask
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// sampleWeight 加权交叉熵的样本权重，正样本权重更高
func sampleWeight(y float64) float64 {
	return 0.3 + 0.7*y
}

// gradients 一个 mini-batch 的累积梯度，嵌入按触达行稀疏累积
type gradients struct {
	titleRows, castRows, genreRows map[int][]float64
	w1, b1, w2, b2, w3, b3         []float64
	wOut, bOut                     []float64
	count                          int
}

func (m *Model) newGradients() *gradients {
	return &gradients{
		titleRows: make(map[int][]float64),
		castRows:  make(map[int][]float64),
		genreRows: make(map[int][]float64),
		w1:        make([]float64, len(m.W1.Data)),
		b1:        make([]float64, len(m.B1.Data)),
		w2:        make([]float64, len(m.W2.Data)),
		b2:        make([]float64, len(m.B2.Data)),
		w3:        make([]float64, len(m.W3.Data)),
		b3:        make([]float64, len(m.B3.Data)),
		wOut:      make([]float64, len(m.WOut.Data)),
		bOut:      make([]float64, len(m.BOut.Data)),
	}
}

func (g *gradients) embRow(rows map[int][]float64, idx, dim int) []float64 {
	r := rows[idx]
	if r == nil {
		r = make([]float64, dim)
		rows[idx] = r
	}
	return r
}

// backward 反向传播一条样本，梯度累积进 g，返回该样本的加权损失
func (m *Model) backward(c *forwardCache, y float64, g *gradients) float64 {
	w := sampleWeight(y)
	loss := -w * (y*math.Log(c.p+1e-12) + (1-y)*math.Log(1-c.p+1e-12))

	// sigmoid + 交叉熵对 logit 的梯度
	dLogit := w * (c.p - y)

	da3 := make([]float64, hidden3)
	for j := 0; j < hidden3; j++ {
		g.wOut[j] += dLogit * c.a3[j]
		da3[j] = dLogit * m.WOut.Data[j]
	}
	g.bOut[0] += dLogit

	da2 := backDenseRelu(da3, c.z3, c.a2, m.W3, g.w3, g.b3)
	applyDropoutGrad(da2, c.mask2)
	da1 := backDenseRelu(da2, c.z2, c.a1, m.W2, g.w2, g.b2)
	applyDropoutGrad(da1, c.mask1)
	dx := backDenseRelu(da1, c.z1, c.x, m.W1, g.w1, g.b1)

	dT := g.embRow(g.titleRows, c.title, m.Dim)
	dC := g.embRow(g.castRows, c.cast, m.Dim)
	dG := g.embRow(g.genreRows, c.genre, m.Dim)
	dfm := dx[3*m.Dim]
	for k := 0; k < m.Dim; k++ {
		dT[k] += dx[k] + dfm*(c.eC[k]+c.eG[k])
		dC[k] += dx[m.Dim+k] + dfm*(c.eT[k]+c.eG[k])
		dG[k] += dx[2*m.Dim+k] + dfm*(c.eT[k]+c.eC[k])
	}

	g.count++
	return loss
}

func backDenseRelu(dOut, z, x []float64, w *tensor, gw, gb []float64) []float64 {
	dIn := make([]float64, w.Rows)
	for j := 0; j < w.Cols; j++ {
		if z[j] <= 0 {
			continue
		}
		d := dOut[j]
		gb[j] += d
		for i := 0; i < w.Rows; i++ {
			gw[i*w.Cols+j] += d * x[i]
			dIn[i] += d * w.at(i, j)
		}
	}
	return dIn
}

func applyDropoutGrad(d, mask []float64) {
	if mask == nil {
		return
	}
	for i := range d {
		d[i] *= mask[i]
	}
}

// applyAdam 用累积梯度执行一步 Adam 更新，带 L2 正则
func (m *Model) applyAdam(g *gradients, lr float64) {
	if g.count == 0 {
		return
	}
	m.step++
	scale := 1 / float64(g.count)

	m.adamDense(m.W1, g.w1, lr, scale, true)
	m.adamDense(m.B1, g.b1, lr, scale, false)
	m.adamDense(m.W2, g.w2, lr, scale, true)
	m.adamDense(m.B2, g.b2, lr, scale, false)
	m.adamDense(m.W3, g.w3, lr, scale, true)
	m.adamDense(m.B3, g.b3, lr, scale, false)
	m.adamDense(m.WOut, g.wOut, lr, scale, true)
	m.adamDense(m.BOut, g.bOut, lr, scale, false)

	m.adamSparse(m.TitleEmb, g.titleRows, lr, scale)
	m.adamSparse(m.CastEmb, g.castRows, lr, scale)
	m.adamSparse(m.GenreEmb, g.genreRows, lr, scale)
}

func (m *Model) adamDense(t *tensor, grad []float64, lr, scale float64, regularize bool) {
	t.ensureAdam()
	c1 := 1 - math.Pow(adamBeta1, float64(m.step))
	c2 := 1 - math.Pow(adamBeta2, float64(m.step))
	for i := range t.Data {
		gv := grad[i] * scale
		if regularize {
			gv += 2 * l2Reg * t.Data[i]
		}
		t.m[i] = adamBeta1*t.m[i] + (1-adamBeta1)*gv
		t.v[i] = adamBeta2*t.v[i] + (1-adamBeta2)*gv*gv
		t.Data[i] -= lr * (t.m[i] / c1) / (math.Sqrt(t.v[i]/c2) + adamEps)
	}
}

// adamSparse 只更新本批次触达的嵌入行
func (m *Model) adamSparse(t *tensor, rows map[int][]float64, lr, scale float64) {
	t.ensureAdam()
	c1 := 1 - math.Pow(adamBeta1, float64(m.step))
	c2 := 1 - math.Pow(adamBeta2, float64(m.step))
	for idx, grad := range rows {
		base := idx * t.Cols
		for k := 0; k < t.Cols; k++ {
			i := base + k
			gv := grad[k]*scale + 2*l2Reg*t.Data[i]
			t.m[i] = adamBeta1*t.m[i] + (1-adamBeta1)*gv
			t.v[i] = adamBeta2*t.v[i] + (1-adamBeta2)*gv*gv
			t.Data[i] -= lr * (t.m[i] / c1) / (math.Sqrt(t.v[i]/c2) + adamEps)
		}
	}
}

// snapshot 深拷贝全部参数，用于早停时回滚到最优权重
func (m *Model) snapshot() map[string][]float64 {
	out := make(map[string][]float64)
	for name, t := range m.params() {
		cp := make([]float64, len(t.Data))
		copy(cp, t.Data)
		out[name] = cp
	}
	return out
}

func (m *Model) restore(snap map[string][]float64) {
	for name, t := range m.params() {
		if data, ok := snap[name]; ok {
			copy(t.Data, data)
		}
	}
}

func (m *Model) params() map[string]*tensor {
	return map[string]*tensor{
		"title_emb": m.TitleEmb,
		"cast_emb":  m.CastEmb,
		"genre_emb": m.GenreEmb,
		"w1":        m.W1,
		"b1":        m.B1,
		"w2":        m.W2,
		"b2":        m.B2,
		"w3":        m.W3,
		"b3":        m.B3,
		"w_out":     m.WOut,
		"b_out":     m.BOut,
	}
}
