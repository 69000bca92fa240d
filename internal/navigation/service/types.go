package service

// NavigateRequest 导航请求
type NavigateRequest struct {
	Input string `json:"input"`
	// Trigger defaults to "submit".
	Trigger string `json:"trigger"`
}

// DecodeResponse 代理路径解码结果
type DecodeResponse struct {
	Target string `json:"target"`
	URL    string `json:"url"`
}
