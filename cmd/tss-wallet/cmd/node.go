package cmd

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"github.com/taurusgroup/multi-party-sig/pkg/pool"

	"github.com/tsswallet/tss-wallet/engine/wallet"
	"github.com/tsswallet/tss-wallet/module"
	moduletss "github.com/tsswallet/tss-wallet/module/tss"
	"github.com/tsswallet/tss-wallet/module/tss/cmp"
	"github.com/tsswallet/tss-wallet/storage/badger"
)

// walletNode holds the components of an opened wallet.
type walletNode struct {
	db           *badgerdb.DB
	pool         *pool.Pool
	orchestrator *moduletss.Orchestrator
	jobs         *moduletss.Jobs
	registry     *wallet.Registry
}

// openWallet opens the checkpoint database, recovers the key-set from it and
// returns the wallet ready to serve requests.
func openWallet(tssMetrics module.TSSMetrics) (*walletNode, error) {
	config := walletConfig()
	err := config.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid wallet configuration: %w", err)
	}

	node := &walletNode{}
	var engine module.ProtocolEngine
	engine, node.pool = newProtocolEngine()

	datadir := viper.GetString("datadir")
	node.db, err = badger.InitSecret(datadir)
	if err != nil {
		return nil, multierror.Append(err, node.Close())
	}
	log.Debug().Str("datadir", datadir).Msg("checkpoint database opened")

	store := badger.NewCheckpoints(log, node.db, config.KeySet)
	router := moduletss.NewRouter(log, engine, tssMetrics)
	node.orchestrator, err = moduletss.NewOrchestrator(log, config, store, router, tssMetrics)
	if err != nil {
		return nil, multierror.Append(err, node.Close())
	}

	err = node.orchestrator.Recover()
	if err != nil {
		return nil, multierror.Append(fmt.Errorf("could not recover key-set %s: %w", config.KeySet, err), node.Close())
	}

	node.jobs, err = moduletss.NewJobs(log, viper.GetInt("workers"), viper.GetInt("retained-jobs"))
	if err != nil {
		return nil, multierror.Append(err, node.Close())
	}
	node.registry = wallet.NewRegistry(log, node.orchestrator, node.jobs)
	return node, nil
}

// newProtocolEngine builds the protocol engine of a wallet along with the
// worker pool backing it, if any. The pool is torn down when the wallet closes.
var newProtocolEngine = cmpEngine

func cmpEngine() (module.ProtocolEngine, *pool.Pool) {
	pl := pool.NewPool(0)
	return cmp.New(pl), pl
}

// Close stops background jobs and releases the database.
func (n *walletNode) Close() error {
	var result *multierror.Error
	if n.jobs != nil {
		n.jobs.Stop()
	}
	if n.pool != nil {
		n.pool.TearDown()
	}
	if n.db != nil {
		err := n.db.Close()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not close database: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// commandContext returns the context bounding a single command.
func commandContext() (context.Context, context.CancelFunc) {
	timeout := viper.GetDuration("timeout")
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
