package main

import (
	"context"
	"flag"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/kokirinetwork/shop/api"
	"github.com/kokirinetwork/shop/market"
	"github.com/kokirinetwork/shop/payment"
	"github.com/kokirinetwork/shop/store"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	bp := flag.String("d", "~/.kokiri/shop/data", "database directory path")
	cp := flag.String("c", "~/.kokiri/shop/config.toml", "configuration file path")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	conf, err := market.Setup(expandHome(*cp))
	if err != nil {
		panic(err)
	}

	db, err := store.OpenBadger(ctx, expandHome(*bp))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	roles := market.NewAccessControl(db)
	err = roles.Bootstrap(conf.Market.Minter, conf.Market.Admin)
	if err != nil {
		panic(err)
	}
	token := payment.NewLedger(db.Badger(), conf.Token.Symbol)
	err = token.Bootstrap(conf.Token.Issuer)
	if err != nil {
		panic(err)
	}

	assets := market.NewAssetLedger(db, roles, log)
	shop := market.NewMarketplace(conf.Market.Address, db, assets, token, roles, log)

	srv := api.NewServer(assets, shop, token, db, conf.API.Secret, log)
	log.Infow("shop started", "listen", conf.API.Listen, "market", conf.Market.Address)
	err = srv.Router().Run(conf.API.Listen)
	if err != nil {
		panic(err)
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	usr, _ := user.Current()
	return filepath.Join(usr.HomeDir, path[2:])
}
