package enums

import "slices"

// ActivityAction names an auditable user action.
type ActivityAction string

const (
	ActivityAddToCart         ActivityAction = "add_to_cart"
	ActivityUpdateCartItem    ActivityAction = "update_cart_item"
	ActivityRemoveCartItem    ActivityAction = "remove_cart_item"
	ActivityClearCart         ActivityAction = "clear_cart"
	ActivityPlaceOrder        ActivityAction = "place_order"
	ActivityApproveOrder      ActivityAction = "approve_order"
	ActivityRejectOrder       ActivityAction = "reject_order"
	ActivityCompleteOrder     ActivityAction = "complete_order"
	ActivityCreateProduct     ActivityAction = "create_product"
	ActivityUpdateProduct     ActivityAction = "update_product"
	ActivityUpdateStock       ActivityAction = "update_stock"
	ActivityDeleteProduct     ActivityAction = "delete_product"
	ActivityDeactivateProduct ActivityAction = "deactivate_product"
	ActivityApproveProduct    ActivityAction = "approve_product"
	ActivityRejectProduct     ActivityAction = "reject_product"
	ActivityLogin             ActivityAction = "login"
)

var validActivityActions = []ActivityAction{
	ActivityAddToCart,
	ActivityUpdateCartItem,
	ActivityRemoveCartItem,
	ActivityClearCart,
	ActivityPlaceOrder,
	ActivityApproveOrder,
	ActivityRejectOrder,
	ActivityCompleteOrder,
	ActivityCreateProduct,
	ActivityUpdateProduct,
	ActivityUpdateStock,
	ActivityDeleteProduct,
	ActivityDeactivateProduct,
	ActivityApproveProduct,
	ActivityRejectProduct,
	ActivityLogin,
}

// String implements fmt.Stringer.
func (a ActivityAction) String() string {
	return string(a)
}

func (a ActivityAction) IsValid() bool {
	return slices.Contains(validActivityActions, a)
}

func ParseActivityAction(value string) (ActivityAction, error) {
	return parse("activity action", validActivityActions, value)
}

// ActivityEntityType names the kind of record an activity entry points at.
type ActivityEntityType string

const (
	ActivityEntityCart     ActivityEntityType = "cart"
	ActivityEntityCartItem ActivityEntityType = "cart_item"
	ActivityEntityOrder    ActivityEntityType = "order"
	ActivityEntityProduct  ActivityEntityType = "product"
	ActivityEntityUser     ActivityEntityType = "user"
)

func (e ActivityEntityType) String() string {
	return string(e)
}
