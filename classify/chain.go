package classify

import (
	"context"

	"go.uber.org/zap"
)

// Chain 先问模型，模型出错或给不出目录内意图时转用兜底分类器。
// 两个分类器都为 nil 以外的任意组合均可用。
type Chain struct {
	primary  Classifier
	fallback Classifier
	logger   *zap.Logger
}

// NewChain 组合主分类器与兜底分类器。
func NewChain(primary, fallback Classifier, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With(zap.String("component", "classify_chain")),
	}
}

// Classify 返回主分类器的结果；主分类器失败或意图为空时
// 使用兜底结果。
func (c *Chain) Classify(ctx context.Context, text string) (*Result, error) {
	if c.primary != nil {
		result, err := c.primary.Classify(ctx, text)
		if err == nil && len(result.Intents) > 0 {
			return result, nil
		}
		if err != nil {
			c.logger.Warn("primary classifier failed, using fallback", zap.Error(err))
		} else {
			c.logger.Warn("primary classifier yielded no intents, using fallback")
		}
	}

	return c.fallback.Classify(ctx, text)
}
