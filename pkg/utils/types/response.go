package types

// Response 统一的接口响应
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// ResponseList 分页列表
type ResponseList struct {
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Count    int64       `json:"count"`
	Results  interface{} `json:"results"`
}

// Pagination 分页参数
type Pagination struct {
	Page     int
	PageSize int
}

// Offset 计算偏移量
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PaginationConfig 分页配置
type PaginationConfig struct {
	MaxPage            int
	PageQueryParam     string
	MaxPageSize        int
	PageSizeQueryParam string
}
