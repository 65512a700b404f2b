// Package types defines the TradeStore interface, the trade-history entity
// types, and the standard errors for the flipstore persistence engine.
//
// The aggregate root is Account. An Account owns Items and RecipeFlipGroups;
// an Item owns its OfferEvents. PartialOffers and the Account's slot pointers
// reference OfferEvents by UUID and never own them.
package types
