package contract

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// 捐赠合约函数名
const (
	FnGetAllCauses        = "getAllCauses"
	FnGetTopDonors        = "getTopDonors"
	FnGetOverallTopDonors = "getOverallTopDonors"
	FnDonate              = "donate"
	FnRequestDonation     = "requestDonation"
	FnCloseCause          = "closeCause"
	FnCreateCause         = "createCause"
)

// Functions 客户端依赖的全部合约函数
var Functions = []string{
	FnGetAllCauses,
	FnGetTopDonors,
	FnGetOverallTopDonors,
	FnDonate,
	FnRequestDonation,
	FnCloseCause,
	FnCreateCause,
}

// ErrorHandler 统一的错误处理函数
type ErrorHandler func(functionName string, err error)

// Operation 一次合约调用所需的全部参数，每次调用重新创建
type Operation struct {
	Address      common.Address
	ABI          *abi.ABI
	FunctionName string
	Args         []interface{}
	Watch        bool
	OnError      ErrorHandler
}

// Method 返回ABI中的函数定义
func (o Operation) Method() (abi.Method, bool) {
	if o.ABI == nil {
		return abi.Method{}, false
	}
	m, ok := o.ABI.Methods[o.FunctionName]
	return m, ok
}

// Selector 返回4字节函数选择器
func (o Operation) Selector() []byte {
	m, ok := o.Method()
	if !ok {
		return nil
	}
	return m.ID
}

// IsQuery 是否为只读函数(view/pure)
func (o Operation) IsQuery() bool {
	m, ok := o.Method()
	return ok && m.IsConstant()
}

// IsPayable 是否可附带转账金额
func (o Operation) IsPayable() bool {
	m, ok := o.Method()
	return ok && m.IsPayable()
}

// Pack 按ABI编码调用数据
func (o Operation) Pack() ([]byte, error) {
	if o.ABI == nil {
		return nil, fmt.Errorf("operation %s has no ABI", o.FunctionName)
	}
	return o.ABI.Pack(o.FunctionName, o.Args...)
}

// WithArgs 返回替换参数后的副本
func (o Operation) WithArgs(args ...interface{}) Operation {
	if args == nil {
		args = []interface{}{}
	}
	o.Args = args
	return o
}

// Fail 将错误交给统一的错误处理函数
func (o Operation) Fail(err error) {
	if err == nil || o.OnError == nil {
		return
	}
	o.OnError(o.FunctionName, err)
}

// Factory 根据函数名生成 Operation
type Factory struct {
	binding *Binding
	onError ErrorHandler
}

// NewFactory 创建 Operation 工厂
func NewFactory(binding *Binding, onError ErrorHandler) *Factory {
	return &Factory{binding: binding, onError: onError}
}

// Build 生成绑定合约地址、ABI和统一错误处理的 Operation
//
// 参数原样返回，不做任何校验。
func (f *Factory) Build(functionName string, args ...interface{}) Operation {
	if args == nil {
		args = []interface{}{}
	}
	return Operation{
		Address:      f.binding.Address(),
		ABI:          f.binding.ABI(),
		FunctionName: functionName,
		Args:         args,
		Watch:        true,
		OnError:      f.onError,
	}
}

// Binding 获取合约绑定
func (f *Factory) Binding() *Binding {
	return f.binding
}
