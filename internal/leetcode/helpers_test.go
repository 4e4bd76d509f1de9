package leetcode

import "github.com/hpungsan/leetsync/internal/config"

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.LeetCodeURL = baseURL
	cfg.LeetCodeSession = "sess-token"
	cfg.TransportRetries = 1
	return cfg
}
