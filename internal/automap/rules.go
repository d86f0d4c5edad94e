package automap

import "github.com/BartekS5/salesimport/pkg/models"

// rule lists the header fragments that identify a target field. Tables are
// ordered: the first rule with a matching fragment wins.
type rule struct {
	Target   string
	Patterns []string
}

var contractRules = []rule{
	{models.FieldContractNumber, []string{"contract number", "contract_number", "contractnumber", "number", "contract #", "contract#", "contrato"}},
	{models.FieldUserEmail, []string{"user email", "useremail", "user_email", "email", "client email", "customer email", "e-mail"}},
	{models.FieldTotalAmount, []string{"total amount", "totalamount", "total_amount", "amount", "value", "price", "valor"}},
	{models.FieldGroupID, []string{"group id", "groupid", "group_id", "group", "team id", "teamid"}},
	{models.FieldStatus, []string{"status", "state", "contract status", "contract_status"}},
	{models.FieldSaleStartDate, []string{"start date", "startdate", "start_date", "sale start", "contract start", "begin date", "data da venda", "data venda"}},
	{models.FieldSaleEndDate, []string{"end date", "enddate", "end_date", "sale end", "contract end", "finish date"}},
	{models.FieldPvID, []string{"pv id", "pvid", "pv_id", "pv", "point of sale", "codigo pv", "código pv"}},
	{models.FieldQuota, []string{"quota", "cota"}},
	{models.FieldContractType, []string{"contract type", "contracttype", "contract_type", "type", "tipo"}},
	{models.FieldCustomerName, []string{"customer name", "customername", "customer_name", "client name", "clientname", "nome do cliente", "nome cliente", "cliente"}},
}

var userRules = []rule{
	{models.FieldName, []string{"name", "first name", "firstname", "user name", "username"}},
	{models.FieldEmail, []string{"email", "e-mail", "email address", "mail"}},
	{models.FieldRoleID, []string{"role id", "roleid", "role_id", "role"}},
}

var rulesByEntity = map[string][]rule{
	EntityContract: contractRules,
	EntityUser:     userRules,
}
