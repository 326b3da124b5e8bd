package model

// HydeInput 假设文档生成输入
type HydeInput struct {
	Query       string
	ChatHistory string
	// ImageURLs 多模态分支的图片（URL 或 data URI），为空走单模态
	ImageURLs []string

	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// RewriteInput 查询改写输入
type RewriteInput struct {
	Query           string
	HypotheticalDoc string

	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}
