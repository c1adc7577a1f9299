package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mawtrade/mawbot/internal/crypto"
	"github.com/mawtrade/mawbot/internal/dca"
	"github.com/mawtrade/mawbot/internal/domain"
)

// marketSlippage pads the limit price of IoC orders so they cross the book
// and behave like market orders.
const marketSlippage = 0.05

// pxSignificantFigures is the maximum price precision the exchange accepts.
const pxSignificantFigures = 5

// Client is the signed REST trading client. It implements
// domain.ExchangeClient against the /exchange and /info endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	logger     *slog.Logger

	metaMu sync.Mutex
	meta   map[string]assetInfo // coin name -> index and size precision
}

type assetInfo struct {
	index      int
	szDecimals int
}

// NewClient creates a trading client for the given API root, e.g.
// "https://api.hyperliquid.xyz".
func NewClient(baseURL string, signer *crypto.Signer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer: signer,
		logger: logger.With(slog.String("component", "hyperliquid_exchange")),
	}
}

// SetLeverage updates the cross leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	asset, err := c.assetInfo(ctx, symbol)
	if err != nil {
		return err
	}

	action := leverageAction{
		Type:     "updateLeverage",
		Asset:    asset.index,
		IsCross:  true,
		Leverage: leverage,
	}

	if _, err := c.postAction(ctx, action); err != nil {
		return fmt.Errorf("hyperliquid: set leverage %s: %w", symbol, err)
	}
	return nil
}

// MarketOrder places an aggressively priced IoC order for sizeInDollars
// worth of the symbol and returns the resulting fill.
func (c *Client) MarketOrder(ctx context.Context, symbol string, side domain.OrderSide, sizeInDollars float64) (domain.Fill, error) {
	asset, err := c.assetInfo(ctx, symbol)
	if err != nil {
		return domain.Fill{}, err
	}

	mid, err := c.midPrice(ctx, symbol)
	if err != nil {
		return domain.Fill{}, err
	}

	isBuy := side == domain.OrderSideBuy
	price := mid * (1 + marketSlippage)
	if !isBuy {
		price = mid * (1 - marketSlippage)
	}
	price = roundToSignificant(price, pxSignificantFigures)

	size := roundToDecimals(sizeInDollars/mid, asset.szDecimals)
	if size <= 0 {
		return domain.Fill{}, fmt.Errorf("hyperliquid: market order %s: size rounds to zero: %w", symbol, domain.ErrInvalidOrder)
	}

	order := orderWire{
		Asset: asset.index,
		IsBuy: isBuy,
		Price: formatDecimal(price),
		Size:  formatDecimal(size),
		Type:  orderType{Limit: &limitOrderType{Tif: "Ioc"}},
		Cloid: newCloid(),
	}

	statuses, err := c.postOrders(ctx, []orderWire{order})
	if err != nil {
		return domain.Fill{}, fmt.Errorf("hyperliquid: market order %s: %w", symbol, err)
	}

	st := statuses[0]
	if st.Error != "" {
		return domain.Fill{}, fmt.Errorf("hyperliquid: market order %s rejected: %s: %w", symbol, st.Error, domain.ErrInvalidOrder)
	}
	if st.Filled == nil {
		return domain.Fill{}, fmt.Errorf("hyperliquid: market order %s did not fill: %w", symbol, domain.ErrInvalidOrder)
	}

	avgPx, err := parseDecimal(st.Filled.AvgPx, "avgPx")
	if err != nil {
		return domain.Fill{}, err
	}
	totalSz, err := parseDecimal(st.Filled.TotalSz, "totalSz")
	if err != nil {
		return domain.Fill{}, err
	}

	c.logger.InfoContext(ctx, "market order filled",
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Float64("avg_price", avgPx),
		slog.Float64("size", totalSz),
	)

	return domain.Fill{
		OrderID:  st.Filled.Oid,
		Price:    avgPx,
		Size:     totalSz,
		FilledAt: time.Now().UTC(),
	}, nil
}

// MarketClose flattens the current position in symbol with a reduce-only
// IoC order for the full exchange-reported size.
func (c *Client) MarketClose(ctx context.Context, symbol string, side domain.OrderSide) error {
	asset, err := c.assetInfo(ctx, symbol)
	if err != nil {
		return err
	}

	size, err := c.positionSize(ctx, symbol)
	if err != nil {
		return err
	}
	if size == 0 {
		c.logger.WarnContext(ctx, "market close on flat position, nothing to do",
			slog.String("symbol", symbol),
		)
		return nil
	}

	mid, err := c.midPrice(ctx, symbol)
	if err != nil {
		return err
	}

	isBuy := side == domain.OrderSideBuy
	price := mid * (1 + marketSlippage)
	if !isBuy {
		price = mid * (1 - marketSlippage)
	}
	price = roundToSignificant(price, pxSignificantFigures)

	order := orderWire{
		Asset:      asset.index,
		IsBuy:      isBuy,
		Price:      formatDecimal(price),
		Size:       formatDecimal(math.Abs(size)),
		ReduceOnly: true,
		Type:       orderType{Limit: &limitOrderType{Tif: "Ioc"}},
		Cloid:      newCloid(),
	}

	statuses, err := c.postOrders(ctx, []orderWire{order})
	if err != nil {
		return fmt.Errorf("hyperliquid: market close %s: %w", symbol, err)
	}
	if st := statuses[0]; st.Error != "" {
		return fmt.Errorf("hyperliquid: market close %s rejected: %s: %w", symbol, st.Error, domain.ErrInvalidOrder)
	}

	c.logger.InfoContext(ctx, "position closed",
		slog.String("symbol", symbol),
		slog.Float64("size", size),
	)
	return nil
}

// CreateDcaLadder places the resting limit buys below referencePrice and
// returns a handle identifying every placed rung.
func (c *Client) CreateDcaLadder(ctx context.Context, symbol string, referencePrice, baseSize, multiplier float64, deviations []float64) (domain.LadderHandle, error) {
	if len(deviations) == 0 {
		return domain.LadderHandle{}, nil
	}

	asset, err := c.assetInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}

	rungs := dca.Plan(referencePrice, dca.Config{
		BaseSize:   baseSize,
		Multiplier: multiplier,
		Deviations: deviations,
	})

	orders := make([]orderWire, 0, len(rungs))
	cloids := make([]string, 0, len(rungs))
	prices := make([]float64, 0, len(rungs))
	for _, rung := range rungs {
		price := roundToSignificant(rung.Price, pxSignificantFigures)
		size := roundToDecimals(rung.Size/price, asset.szDecimals)
		if size <= 0 {
			return nil, fmt.Errorf("hyperliquid: ladder %s: rung at %.6f rounds to zero size: %w", symbol, price, domain.ErrInvalidOrder)
		}
		cloid := newCloid()
		cloids = append(cloids, cloid)
		prices = append(prices, price)
		orders = append(orders, orderWire{
			Asset: asset.index,
			IsBuy: true,
			Price: formatDecimal(price),
			Size:  formatDecimal(size),
			Type:  orderType{Limit: &limitOrderType{Tif: "Gtc"}},
			Cloid: cloid,
		})
	}

	statuses, err := c.postOrders(ctx, orders)
	if err != nil {
		return nil, fmt.Errorf("hyperliquid: place ladder %s: %w", symbol, err)
	}

	handle := make(domain.LadderHandle, 0, len(statuses))
	for i, st := range statuses {
		if st.Error != "" {
			return nil, fmt.Errorf("hyperliquid: ladder %s rung %d rejected: %s: %w", symbol, i, st.Error, domain.ErrInvalidOrder)
		}
		var oid int64
		switch {
		case st.Resting != nil:
			oid = st.Resting.Oid
		case st.Filled != nil:
			// A deep-enough dip can fill a rung immediately.
			oid = st.Filled.Oid
		default:
			return nil, fmt.Errorf("hyperliquid: ladder %s rung %d: no order id in response: %w", symbol, i, domain.ErrInvalidOrder)
		}
		handle = append(handle, domain.LadderOrder{
			OrderID:   oid,
			Cloid:     cloids[i],
			Price:     prices[i],
			Size:      rungs[i].Size,
			Deviation: rungs[i].Deviation,
		})
	}

	return handle, nil
}

// CancelLadder cancels every order in the handle in one batch action.
func (c *Client) CancelLadder(ctx context.Context, symbol string, deviations []float64, handle domain.LadderHandle) error {
	if len(handle) == 0 {
		return nil
	}

	asset, err := c.assetInfo(ctx, symbol)
	if err != nil {
		return err
	}

	cancels := make([]cancelWire, 0, len(handle))
	for _, order := range handle {
		cancels = append(cancels, cancelWire{Asset: asset.index, OrderID: order.OrderID})
	}

	action := cancelAction{Type: "cancel", Cancels: cancels}
	if _, err := c.postAction(ctx, action); err != nil {
		return fmt.Errorf("hyperliquid: cancel ladder %s: %w", symbol, err)
	}

	c.logger.InfoContext(ctx, "ladder cancelled",
		slog.String("symbol", symbol),
		slog.Int("orders", len(cancels)),
	)
	return nil
}

// --------------------------------------------------------------------------
// Info endpoint queries
// --------------------------------------------------------------------------

// assetInfo resolves a coin name to its asset index and size precision,
// loading the perp universe on first use.
func (c *Client) assetInfo(ctx context.Context, symbol string) (assetInfo, error) {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()

	if c.meta == nil {
		body, err := c.postInfo(ctx, infoRequest{Type: "meta"})
		if err != nil {
			return assetInfo{}, fmt.Errorf("hyperliquid: load meta: %w", err)
		}
		var meta metaResponse
		if err := json.Unmarshal(body, &meta); err != nil {
			return assetInfo{}, fmt.Errorf("hyperliquid: decode meta: %w", err)
		}
		c.meta = make(map[string]assetInfo, len(meta.Universe))
		for i, a := range meta.Universe {
			c.meta[a.Name] = assetInfo{index: i, szDecimals: a.SzDecimals}
		}
	}

	info, ok := c.meta[symbol]
	if !ok {
		return assetInfo{}, fmt.Errorf("hyperliquid: unknown asset %q: %w", symbol, domain.ErrNotFound)
	}
	return info, nil
}

// midPrice returns the current mid for symbol from the allMids feed.
func (c *Client) midPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := c.postInfo(ctx, infoRequest{Type: "allMids"})
	if err != nil {
		return 0, fmt.Errorf("hyperliquid: load mids: %w", err)
	}

	var mids map[string]string
	if err := json.Unmarshal(body, &mids); err != nil {
		return 0, fmt.Errorf("hyperliquid: decode mids: %w", err)
	}

	raw, ok := mids[symbol]
	if !ok {
		return 0, fmt.Errorf("hyperliquid: no mid for %q: %w", symbol, domain.ErrNotFound)
	}
	return parseDecimal(raw, "mid")
}

// positionSize returns the signed position size for symbol from the
// account's clearinghouse state.
func (c *Client) positionSize(ctx context.Context, symbol string) (float64, error) {
	body, err := c.postInfo(ctx, infoRequest{
		Type: "clearinghouseState",
		User: c.signer.Address().Hex(),
	})
	if err != nil {
		return 0, fmt.Errorf("hyperliquid: load clearinghouse state: %w", err)
	}

	var state clearinghouseState
	if err := json.Unmarshal(body, &state); err != nil {
		return 0, fmt.Errorf("hyperliquid: decode clearinghouse state: %w", err)
	}

	for _, entry := range state.AssetPositions {
		if entry.Position.Coin == symbol {
			return parseDecimal(entry.Position.Szi, "szi")
		}
	}
	return 0, nil
}

// --------------------------------------------------------------------------
// Transport helpers
// --------------------------------------------------------------------------

// postOrders wraps orders into a signed "order" action and returns the
// per-order statuses.
func (c *Client) postOrders(ctx context.Context, orders []orderWire) ([]orderStatus, error) {
	action := orderAction{Type: "order", Orders: orders, Grouping: "na"}
	resp, err := c.postAction(ctx, action)
	if err != nil {
		return nil, err
	}

	statuses := resp.Response.Data.Statuses
	if len(statuses) != len(orders) {
		return nil, fmt.Errorf("hyperliquid: expected %d order statuses, got %d", len(orders), len(statuses))
	}
	return statuses, nil
}

// postAction signs an action and posts it to /exchange.
func (c *Client) postAction(ctx context.Context, action any) (exchangeResponse, error) {
	nonce := time.Now().UnixMilli()

	sig, err := c.signer.SignAction(action, nonce)
	if err != nil {
		return exchangeResponse{}, fmt.Errorf("sign action: %w", domain.ErrSigningFailed)
	}

	payload := map[string]any{
		"action":    action,
		"nonce":     nonce,
		"signature": sig,
	}

	body, err := c.doPost(ctx, "/exchange", payload)
	if err != nil {
		return exchangeResponse{}, err
	}

	var resp exchangeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return exchangeResponse{}, fmt.Errorf("decode exchange response: %w", err)
	}
	if resp.Status != "ok" {
		return exchangeResponse{}, fmt.Errorf("exchange returned status %q", resp.Status)
	}
	return resp, nil
}

// postInfo posts a query to /info and returns the raw response body.
func (c *Client) postInfo(ctx context.Context, req infoRequest) ([]byte, error) {
	return c.doPost(ctx, "/info", req)
}

func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// newCloid builds a 16-byte hex client order id from a UUID.
func newCloid() string {
	id := uuid.New()
	return "0x" + strings.ReplaceAll(id.String(), "-", "")
}

// roundToSignificant rounds v to the given number of significant figures.
func roundToSignificant(v float64, figures int) float64 {
	if v == 0 {
		return 0
	}
	magnitude := math.Ceil(math.Log10(math.Abs(v)))
	scale := math.Pow(10, float64(figures)-magnitude)
	return math.Round(v*scale) / scale
}

// roundToDecimals truncates v to the asset's size precision.
func roundToDecimals(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Floor(v*scale) / scale
}

// formatDecimal renders a float the way the API expects: a plain decimal
// string without exponent notation.
func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
