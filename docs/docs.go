// Package docs Swagger文档，由swag init -g cmd/api/main.go -o docs重新生成
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/orders": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["订单模块"],
                "summary": "我的订单",
                "parameters": [
                    {"type": "integer", "default": 1, "description": "页码", "name": "page", "in": "query"},
                    {"type": "integer", "default": 20, "description": "每页数量", "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/orders/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["订单模块"],
                "summary": "结算下单",
                "parameters": [
                    {"type": "string", "description": "幂等键", "name": "Idempotency-Key", "in": "header"},
                    {"description": "结算信息", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CheckoutRequest"}}
                ],
                "responses": {"200": {"description": "下单成功", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/orders/{code}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["订单模块"],
                "summary": "订单详情",
                "parameters": [{"type": "string", "description": "订单号", "name": "code", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/orders/{code}/cancel": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["订单模块"],
                "summary": "取消订单",
                "parameters": [{"type": "string", "description": "订单号", "name": "code", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/payments": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["支付模块"],
                "summary": "发起支付",
                "parameters": [{"description": "支付信息", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.CreatePaymentRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/payments/{id}/confirm": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["支付模块"],
                "summary": "确认支付",
                "parameters": [{"type": "integer", "description": "支付ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/payments/{id}/refund": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["支付模块"],
                "summary": "退款",
                "parameters": [{"type": "integer", "description": "支付ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/payments/vnpay/return": {
            "get": {
                "produces": ["application/json"],
                "tags": ["支付模块"],
                "summary": "VNPay回跳",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        }
    },
    "definitions": {
        "dto.CheckoutRequest": {
            "type": "object",
            "required": ["cart_id", "payment_method"],
            "properties": {
                "cart_id": {"type": "integer", "example": 1},
                "discount_code": {"type": "string", "example": "SAVE10"},
                "payment_method": {"type": "string", "enum": ["vnpay", "momo", "stripe", "sandbox"], "example": "vnpay"}
            }
        },
        "dto.CreatePaymentRequest": {
            "type": "object",
            "required": ["order_code", "payment_method"],
            "properties": {
                "order_code": {"type": "string", "example": "ORDER-1A2B3C4D"},
                "payment_method": {"type": "string", "enum": ["vnpay", "momo", "stripe", "sandbox"], "example": "vnpay"}
            }
        },
        "response.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo 运行时可修改Host等字段
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Pharmatech 订单履约API",
	Description:      "结算、库存扣减、优惠码核销、支付状态机",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
