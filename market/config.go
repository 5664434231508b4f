package market

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

type Configuration struct {
	Market struct {
		Address string `toml:"address"`
		Minter  string `toml:"minter"`
		Admin   string `toml:"admin"`
	} `toml:"market"`
	Token struct {
		Symbol string `toml:"symbol"`
		Issuer string `toml:"issuer"`
	} `toml:"token"`
	API struct {
		Listen string `toml:"listen"`
		Secret string `toml:"secret"`
	} `toml:"api"`
}

func Setup(path string) (*Configuration, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conf Configuration
	err = toml.Unmarshal(f, &conf)
	if err != nil {
		return nil, err
	}
	if conf.Market.Address == "" {
		return nil, fmt.Errorf("missing market address in %s", path)
	}
	if conf.Market.Minter == "" || conf.Market.Admin == "" {
		return nil, fmt.Errorf("missing genesis minter or admin in %s", path)
	}
	if conf.Token.Issuer == "" {
		return nil, fmt.Errorf("missing token issuer in %s", path)
	}
	if conf.API.Listen == "" {
		conf.API.Listen = ":7001"
	}
	return &conf, nil
}
