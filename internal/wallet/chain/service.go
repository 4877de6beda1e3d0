package chain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// service 实现 Service 接口
type service struct {
	networks []*Network
}

// NewService 创建链配置服务
//
//nolint:ireturn
func NewService(networks []*Network) Service {
	return &service{networks: networks}
}

// LoadNetworks reads the network config file. The format is derived from the file
// extension (json, yaml, toml); the file must hold a top-level `networks` list.
func LoadNetworks(path string) ([]*Network, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read network config %s", path)
	}

	var networks []*Network
	if err := v.UnmarshalKey("networks", &networks); err != nil {
		return nil, errors.Wrapf(err, "failed to decode networks in %s", path)
	}

	if len(networks) == 0 {
		return nil, errors.Wrapf(ErrNoNetworks, "no networks in %s", path)
	}

	seen := make(map[string]struct{}, len(networks))
	for i, n := range networks {
		if n == nil || n.Key == "" || n.RPC == "" {
			return nil, errors.Wrapf(ErrInvalidNetwork, "network #%d needs a key and an rpc", i+1)
		}
		if _, ok := seen[n.Key]; ok {
			return nil, errors.Wrapf(ErrInvalidNetwork, "duplicate network key %q", n.Key)
		}
		seen[n.Key] = struct{}{}
	}

	return networks, nil
}

// NewServiceFromFile loads the network config file and wraps it in a Service.
//
//nolint:ireturn
func NewServiceFromFile(path string) (Service, error) {
	networks, err := LoadNetworks(path)
	if err != nil {
		return nil, err
	}

	return NewService(networks), nil
}

// GetNetwork 根据 key 查询链配置
func (s *service) GetNetwork(key string) (*Network, error) {
	for _, n := range s.networks {
		if n.Key == key {
			return n, nil
		}
	}

	return nil, errors.Wrapf(ErrNetworkNotFound, "unknown network %q", key)
}

// ListNetworks 查询所有链配置
func (s *service) ListNetworks() []*Network {
	res := make([]*Network, len(s.networks))
	copy(res, s.networks)

	return res
}

// ParseRPCURLs 解析 RPC URL（支持多个，逗号分隔）
func (s *service) ParseRPCURLs(rpcURL string) []string {
	return ParseRPCURLs(rpcURL)
}

// ParseRPCURLs splits a comma separated list of RPC URLs.
func ParseRPCURLs(rpcURL string) []string {
	if rpcURL == "" {
		return nil
	}

	urls := strings.Split(rpcURL, ",")
	result := make([]string, 0, len(urls))

	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url != "" {
			result = append(result, url)
		}
	}

	return result
}
