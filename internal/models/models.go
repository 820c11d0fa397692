// Package models provides the value types shared by the pricing engine and
// its callers: option legs, market snapshots, Greeks, payoff points, strategy
// metrics and option chains.
//
// Monetary amounts on a position (net premium, max profit and loss, P&L) are
// per position, i.e. already multiplied by ContractMultiplier and quantity.
// Premiums, strikes and Greeks on a leg are per share.
package models
