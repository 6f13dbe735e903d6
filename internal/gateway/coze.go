package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CozeConfig 定义情感分析工作流的接入配置。
type CozeConfig struct {
	APIBase    string `yaml:"api_base" json:"api_base"`
	Token      string `yaml:"token" json:"token"`
	WorkflowID string `yaml:"workflow_id" json:"workflow_id"`
}

// WorkflowClient 抽象一次批量分析调用，便于测试注入。
// 返回值保持原始 JSON：工作流的输出可能是列表、对象或再编码的字符串，
// 形态归一交给 Normalize 处理。
type WorkflowClient interface {
	RunWorkflow(ctx context.Context, inputText string) (json.RawMessage, error)
}

// CozeClient 实现 WorkflowClient。
type CozeClient struct {
	cfg    CozeConfig
	client *http.Client
}

// NewCozeClient 创建客户端。
func NewCozeClient(cfg CozeConfig, httpClient *http.Client) *CozeClient {
	base := strings.TrimSpace(cfg.APIBase)
	if base == "" {
		base = "https://api.coze.cn"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &CozeClient{
		cfg:    CozeConfig{APIBase: base, Token: cfg.Token, WorkflowID: cfg.WorkflowID},
		client: httpClient,
	}
}

// RunWorkflow 提交一批 CSV 文本，返回工作流原始输出。
func (c *CozeClient) RunWorkflow(ctx context.Context, inputText string) (json.RawMessage, error) {
	if strings.TrimSpace(c.cfg.Token) == "" {
		return nil, fmt.Errorf("coze token missing")
	}
	if strings.TrimSpace(c.cfg.WorkflowID) == "" {
		return nil, fmt.Errorf("coze workflow id missing")
	}

	payload := cozeRunRequest{
		WorkflowID: c.cfg.WorkflowID,
		Parameters: map[string]string{"input_text": inputText},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.APIBase, "/")+"/v1/workflow/run", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coze request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("coze http %d", resp.StatusCode)
	}

	var body cozeRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode coze response: %w", err)
	}
	if body.Code != 0 {
		return nil, fmt.Errorf("coze workflow error %d: %s", body.Code, body.Msg)
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("coze response empty")
	}
	return body.Data, nil
}

type cozeRunRequest struct {
	WorkflowID string            `json:"workflow_id"`
	Parameters map[string]string `json:"parameters"`
}

type cozeRunResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}
