package broker

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
)

// Sim is the simulated broker: it holds balances for exactly one
// base/quote pair, fills signals at the requested price and keeps the
// ledger balance-conserving. All mutation happens on the feed-driven
// control flow, so there is no locking.
type Sim struct {
	bus        *bus.Bus
	symbol     string
	base       string
	quote      string
	balances   model.Balances
	positions  map[string]*model.Position
	commission Commission
	inited     bool
}

// NewSim wires a simulated broker for symbol (e.g. "ETH/USDT") with the
// given initial balances and an optional commission policy.
func NewSim(b *bus.Bus, symbol string, initial model.Balances, commission Commission) *Sim {
	base, quote := model.SplitSymbol(symbol)
	s := &Sim{
		bus:        b,
		symbol:     symbol,
		base:       base,
		quote:      quote,
		balances:   initial.Clone(),
		commission: commission,
		positions:  make(map[string]*model.Position, 1),
	}

	b.Subscribe(model.TopicSignalBuy, func(payload any) {
		req, ok := payload.(model.SignalRequest)
		if !ok {
			logs.Errorf("broker: unexpected %s payload %T", model.TopicSignalBuy, payload)
			return
		}
		order, err := s.buyWithCommission(req.Price, req.Amount, req.TimestampMs)
		if err != nil {
			logs.Errorf("broker buy: %+v", err)
			return
		}
		s.publishOrder(order)
	})

	b.Subscribe(model.TopicSignalSell, func(payload any) {
		req, ok := payload.(model.SignalRequest)
		if !ok {
			logs.Errorf("broker: unexpected %s payload %T", model.TopicSignalSell, payload)
			return
		}
		order, err := s.sellWithCommission(req.Price, req.Amount, req.TimestampMs)
		if err != nil {
			logs.Errorf("broker sell: %+v", err)
			return
		}
		s.publishOrder(order)
	})

	return s
}

func (s *Sim) Symbol() string { return s.symbol }

// Init publishes the constructed initial balances exactly once.
func (s *Sim) Init() error {
	if s.inited {
		return nil
	}
	s.inited = true
	s.bus.Publish(model.TopicBalanceInit, s.balances.Clone())
	return nil
}

func (s *Sim) FetchBalances() model.Balances {
	return s.balances.Clone()
}

func (s *Sim) Balance(symbol string) decimal.Decimal {
	return s.balances.Get(symbol)
}

func (s *Sim) HasBalance(symbol string, amount float64) bool {
	return s.balances.Get(symbol).Cmp(decimal.NewFromFloat(amount)) >= 0
}

func (s *Sim) Position(symbol string) (model.Position, bool) {
	if symbol == "" {
		symbol = s.base
	}
	p, ok := s.positions[symbol]
	if !ok {
		return model.Position{}, false
	}
	return *p, true
}

// Buy requires quote balance >= price*amount. On success it debits quote
// by cost, credits base by amount and updates the position. Failure leaves
// the ledger untouched.
func (s *Sim) Buy(price, amount float64, timestampMs int64) (model.Order, error) {
	cost := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(amount))
	if s.balances.Get(s.quote).Cmp(cost) < 0 {
		return model.Order{}, errors.Wrapf(ErrInsufficientBalance, "%s:%s", s.quote, cost)
	}

	s.subBalance(s.quote, cost)
	s.addBalance(s.base, decimal.NewFromFloat(amount))
	s.addPosition(amount, price)

	cf, _ := cost.Float64()
	return model.Order{
		Side:        enum.SideBuy,
		Symbol:      s.symbol,
		Price:       price,
		Amount:      amount,
		Cost:        cf,
		TimestampMs: timestampMs,
	}, nil
}

// Sell is the mirror of Buy: it requires base balance >= amount.
func (s *Sim) Sell(price, amount float64, timestampMs int64) (model.Order, error) {
	amt := decimal.NewFromFloat(amount)
	if s.balances.Get(s.base).Cmp(amt) < 0 {
		return model.Order{}, errors.Wrapf(ErrInsufficientBalance, "%s:%s", s.base, amt)
	}

	proceeds := decimal.NewFromFloat(price).Mul(amt)
	s.subBalance(s.base, amt)
	s.addBalance(s.quote, proceeds)
	s.addPosition(-amount, price)

	pf, _ := proceeds.Float64()
	return model.Order{
		Side:        enum.SideSell,
		Symbol:      s.symbol,
		Price:       price,
		Amount:      amount,
		Cost:        pf,
		TimestampMs: timestampMs,
	}, nil
}

// buyWithCommission executes the buy and then deducts the fee from the
// quote balance, attaching it to the returned order. A fee debit that
// would go negative surfaces as an error instead of being skipped.
func (s *Sim) buyWithCommission(price, amount float64, timestampMs int64) (model.Order, error) {
	if s.commission == nil {
		return s.Buy(price, amount, timestampMs)
	}
	fee := s.commission.Calculate(price, amount)
	order, err := s.Buy(price, amount, timestampMs)
	if err != nil {
		return order, err
	}
	order.Fee = fee
	if err := s.subBalance(s.quote, decimal.NewFromFloat(fee)); err != nil {
		return order, errors.Wrap(err, "commission debit")
	}
	return order, nil
}

func (s *Sim) sellWithCommission(price, amount float64, timestampMs int64) (model.Order, error) {
	if s.commission == nil {
		return s.Sell(price, amount, timestampMs)
	}
	fee := s.commission.Calculate(price, amount)
	order, err := s.Sell(price, amount, timestampMs)
	if err != nil {
		return order, err
	}
	order.Fee = fee
	if err := s.subBalance(s.quote, decimal.NewFromFloat(fee)); err != nil {
		return order, errors.Wrap(err, "commission debit")
	}
	return order, nil
}

// publishOrder emits order:filled while net size remains, position:closed
// when the fill brought size to exactly zero, then always balance:update.
func (s *Sim) publishOrder(order model.Order) {
	if pos, ok := s.positions[s.base]; ok {
		if pos.Size != 0 {
			s.bus.Publish(model.TopicOrderFilled, order)
		} else {
			s.bus.Publish(model.TopicPositionClosed, order)
			delete(s.positions, s.base)
		}
	}
	s.bus.Publish(model.TopicBalanceUpdate, model.BalanceUpdate{
		TimestampMs: order.TimestampMs,
		Balances:    s.balances.Clone(),
	})
}

func (s *Sim) addPosition(size, price float64) {
	if pos, ok := s.positions[s.base]; ok {
		pos.Size += size
		pos.EntryPrice = price
		return
	}
	s.positions[s.base] = &model.Position{Symbol: s.base, Size: size, EntryPrice: price}
}

func (s *Sim) addBalance(symbol string, amount decimal.Decimal) {
	s.balances[symbol] = s.balances.Get(symbol).Add(amount.Abs())
}

func (s *Sim) subBalance(symbol string, amount decimal.Decimal) error {
	amount = amount.Abs()
	current := s.balances.Get(symbol)
	if current.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "%s:%s", symbol, amount)
	}
	s.balances[symbol] = current.Sub(amount)
	return nil
}
