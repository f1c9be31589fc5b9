package server

import (
	"math/rand/v2"
)

// 昵称词库
var (
	adjectives = []string{
		"勇敢的", "聪明的", "快乐的", "神秘的", "酷炫的",
		"优雅的", "沉稳的", "机智的", "潇洒的", "霸气的",
		"淡定的", "闪亮的", "迷人的", "傲娇的", "高冷的",
		"凌厉的", "谨慎的", "锋利的", "从容的", "狡黠的",
	}

	nouns = []string{
		"小兵", "骑士", "主教", "战车", "皇后",
		"国王", "棋手", "大师", "新锐", "老将",
		"行家", "黑马", "白马", "猎手", "谋士",
		"布局家", "弃子手", "闪击手", "残局王", "先行者",
	}
)

// GenerateNickname 生成随机昵称
func GenerateNickname() string {
	adj := adjectives[rand.IntN(len(adjectives))]
	noun := nouns[rand.IntN(len(nouns))]
	return adj + noun
}
