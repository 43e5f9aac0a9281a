package a2a

// CapabilityType 代表代理提供的一种能力类型.
type CapabilityType string

const (
	// CapabilityTypeTask 表示代理可以执行任务.
	CapabilityTypeTask CapabilityType = "task"
	// CapabilityTypeQuery 表示代理可以回答查询.
	CapabilityTypeQuery CapabilityType = "query"
	// CapabilityTypeStream 表示代理支持流式响应.
	CapabilityTypeStream CapabilityType = "stream"
)

// Capability 定义代理在 A2A 协议中的一项能力.
type Capability struct {
	// Name 是此能力的唯一标识符.
	Name string `json:"name"`
	// Description 是此能力的可读描述.
	Description string `json:"description"`
	// Type 表示能力类型(task, query, stream).
	Type CapabilityType `json:"type"`
}

// AgentCard 描述代理的能力和元数据, 用于代理发现.
// 在 /.well-known/agent.json 提供服务.
type AgentCard struct {
	// Name 是此代理的唯一标识符.
	Name string `json:"name"`
	// Description 是此代理用途的可读描述.
	Description string `json:"description"`
	// URL 是访问此代理的基础地址.
	URL string `json:"url"`
	// Version 表示代理的版本.
	Version string `json:"version"`
	// Capabilities 列出此代理提供的能力.
	Capabilities []Capability `json:"capabilities"`
	// Intents 列出此代理处理的意图名.
	Intents []string `json:"intents,omitempty"`
	// Endpoints 按名称列出协议端点路径.
	Endpoints map[string]string `json:"endpoints,omitempty"`
	// Metadata 包含用于扩展的键值对.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewAgentCard 创建带有必需字段的新代理卡.
func NewAgentCard(name, description, url, version string) *AgentCard {
	return &AgentCard{
		Name:         name,
		Description:  description,
		URL:          url,
		Version:      version,
		Capabilities: make([]Capability, 0),
		Intents:      make([]string, 0),
		Endpoints:    make(map[string]string),
		Metadata:     make(map[string]string),
	}
}

// AddCapability 向代理卡添加一项能力.
func (c *AgentCard) AddCapability(name, description string, capType CapabilityType) *AgentCard {
	c.Capabilities = append(c.Capabilities, Capability{
		Name:        name,
		Description: description,
		Type:        capType,
	})
	return c
}

// AddIntent 向代理卡添加一个可处理的意图.
func (c *AgentCard) AddIntent(intent string) *AgentCard {
	c.Intents = append(c.Intents, intent)
	return c
}

// SetEndpoint 按名称登记一个协议端点路径.
func (c *AgentCard) SetEndpoint(name, path string) *AgentCard {
	if c.Endpoints == nil {
		c.Endpoints = make(map[string]string)
	}
	c.Endpoints[name] = path
	return c
}

// SetMetadata 设置一个元数据键值对.
func (c *AgentCard) SetMetadata(key, value string) *AgentCard {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
	return c
}

// GetMetadata 按键检索元数据值.
func (c *AgentCard) GetMetadata(key string) (string, bool) {
	if c.Metadata == nil {
		return "", false
	}
	v, ok := c.Metadata[key]
	return v, ok
}

// HasIntent 检查代理卡是否声明了指定意图.
func (c *AgentCard) HasIntent(intent string) bool {
	for _, it := range c.Intents {
		if it == intent {
			return true
		}
	}
	return false
}

// HasCapability 检查代理卡是否声明了指定能力.
func (c *AgentCard) HasCapability(name string) bool {
	for _, capability := range c.Capabilities {
		if capability.Name == name {
			return true
		}
	}
	return false
}

// GetCapability 按名称检索一项能力.
func (c *AgentCard) GetCapability(name string) (*Capability, bool) {
	for i := range c.Capabilities {
		if c.Capabilities[i].Name == name {
			return &c.Capabilities[i], true
		}
	}
	return nil, false
}

// Validate 检查代理卡是否具备所有必需字段.
func (c *AgentCard) Validate() error {
	if c.Name == "" {
		return ErrCardMissingName
	}
	if c.Description == "" {
		return ErrCardMissingDescription
	}
	if c.URL == "" {
		return ErrCardMissingURL
	}
	if c.Version == "" {
		return ErrCardMissingVersion
	}
	return nil
}
